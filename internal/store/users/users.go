// Package users is the SQL store for accounts.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/5w1tchy/book-thrift/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

const userCols = `id, email, COALESCE(full_name, ''), hashed_password, token_version, created_at`

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.TokenVersion, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) Create(ctx context.Context, email, fullName, hash string) (models.User, error) {
	var name any
	if fullName != "" {
		name = fullName
	}
	u, err := scanUser(s.DB.QueryRowContext(ctx, `
		INSERT INTO users (email, full_name, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING `+userCols, email, name, hash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) ByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (s *Store) ByID(ctx context.Context, id int64) (models.User, error) {
	return scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

// TokenVersion is read on every authenticated request.
func (s *Store) TokenVersion(ctx context.Context, id int64) (int, error) {
	var tv int
	err := s.DB.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = $1`, id).Scan(&tv)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return tv, err
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE users SET hashed_password = $1 WHERE id = $2`, hash, id)
	return err
}

// BumpTokenVersion revokes every access and refresh token issued so far.
func (s *Store) BumpTokenVersion(ctx context.Context, id int64) (int, error) {
	var tv int
	err := s.DB.QueryRowContext(ctx,
		`UPDATE users SET token_version = token_version + 1 WHERE id = $1 RETURNING token_version`, id,
	).Scan(&tv)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return tv, err
}
