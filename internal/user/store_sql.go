package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/db"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const userCols = `id,email,full_name,role,password_hash,created_at,updated_at`

func (s *SQLStore) Create(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.FullName, string(u.Role), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", u.Email, common.ErrConflict)
	}
	return err
}

func (s *SQLStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.one(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.one(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email)
}

func (s *SQLStore) Update(ctx context.Context, u User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email=$1, full_name=$2, role=$3, password_hash=$4, updated_at=$5 WHERE id=$6`,
		u.Email, u.FullName, string(u.Role), u.PasswordHash, u.UpdatedAt, u.ID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", u.Email, common.ErrConflict)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, role Role) ([]User, error) {
	q := `SELECT ` + userCols + ` FROM users`
	var args []any
	if role != "" {
		q += ` WHERE role=$1`
		args = append(args, string(role))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) one(ctx context.Context, q string, arg string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, common.ErrNotFound
	}
	return u, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (User, error) {
	var u User
	var role string
	err := sc.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	u.Role = Role(role)
	return u, err
}
