package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

const bcryptCost = 12

type Service struct {
	store Store
	now   func() time.Time
	cost  int
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now, cost: bcryptCost}
}

type SignupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,max=120"`
	Role     Role   `json:"role" validate:"omitempty,oneof=student teacher"`
}

type ProfileInput struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=120"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *Service) Signup(ctx context.Context, in SignupInput) (User, error) {
	role := in.Role
	if role == "" {
		role = RoleStudent
	}
	if role == RoleAdmin {
		return User{}, fmt.Errorf("admin accounts cannot self-register: %w", common.ErrForbidden)
	}
	if !role.Valid() {
		return User{}, fmt.Errorf("role %q: %w", role, common.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	now := s.now().Unix()
	u := User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(in.Email),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, common.ErrNotFound) {
		return User{}, common.ErrUnauthorized
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, common.ErrUnauthorized
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, role Role) ([]User, error) {
	return s.store.List(ctx, role)
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (User, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.Email != nil {
		u.Email = normalizeEmail(*in.Email)
	}
	if in.FullName != nil {
		u.FullName = strings.TrimSpace(*in.FullName)
	}
	u.UpdatedAt = s.now().Unix()
	if err := s.store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return common.ErrUnauthorized
	}
	if len(next) < 8 {
		return fmt.Errorf("new password too short: %w", common.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = s.now().Unix()
	return s.store.Update(ctx, u)
}

// SetRole is an admin operation.
func (s *Service) SetRole(ctx context.Context, id string, role Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("role %q: %w", role, common.ErrValidation)
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	u.Role = role
	u.UpdatedAt = s.now().Unix()
	if err := s.store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}
