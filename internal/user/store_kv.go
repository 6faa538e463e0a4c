package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/kv"
)

// UsersKey holds a JSON map of users keyed by email.
const UsersKey = "users"

// KVStore keeps all users in one JSON document.
type KVStore struct {
	kv kv.Store
}

func NewKVStore(s kv.Store) *KVStore { return &KVStore{kv: s} }

func (s *KVStore) load(ctx context.Context) (map[string]User, error) {
	b, err := s.kv.Get(ctx, UsersKey)
	if errors.Is(err, common.ErrNotFound) {
		return map[string]User{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(b)
}

func decode(b []byte) (map[string]User, error) {
	m := map[string]User{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", UsersKey, err)
	}
	return m, nil
}

func (s *KVStore) Create(ctx context.Context, u User) error {
	return s.kv.Update(ctx, UsersKey, func(cur []byte) ([]byte, error) {
		m, err := decode(cur)
		if err != nil {
			return nil, err
		}
		if _, taken := m[u.Email]; taken {
			return nil, fmt.Errorf("email %s: %w", u.Email, common.ErrConflict)
		}
		m[u.Email] = u
		return json.Marshal(m)
	})
}

func (s *KVStore) GetByID(ctx context.Context, id string) (User, error) {
	m, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range m {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, common.ErrNotFound
}

func (s *KVStore) GetByEmail(ctx context.Context, email string) (User, error) {
	m, err := s.load(ctx)
	if err != nil {
		return User{}, err
	}
	u, ok := m[email]
	if !ok {
		return User{}, common.ErrNotFound
	}
	return u, nil
}

func (s *KVStore) Update(ctx context.Context, u User) error {
	return s.kv.Update(ctx, UsersKey, func(cur []byte) ([]byte, error) {
		m, err := decode(cur)
		if err != nil {
			return nil, err
		}
		oldEmail := ""
		for email, existing := range m {
			if existing.ID == u.ID {
				oldEmail = email
				break
			}
		}
		if oldEmail == "" {
			return nil, common.ErrNotFound
		}
		if other, taken := m[u.Email]; taken && other.ID != u.ID {
			return nil, fmt.Errorf("email %s: %w", u.Email, common.ErrConflict)
		}
		delete(m, oldEmail)
		m[u.Email] = u
		return json.Marshal(m)
	})
}

func (s *KVStore) List(ctx context.Context, role Role) ([]User, error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []User
	for _, u := range m {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}
