package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/parley/chat-app/internal/chat"
)

// Account is a user row including the credential hash. Only the auth
// paths see this type; everything else works with chat.User.
type Account struct {
	chat.User
	PasswordHash string
}

// CreateUser inserts a new account and returns its public projection.
// A duplicate email maps to ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, email, nickname, passwordHash string) (*chat.User, error) {
	const query = `
		INSERT INTO users (email, nickname, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id`

	var id string
	err := s.db.QueryRowContext(ctx, query, email, nickname, passwordHash).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("store: create user: %w", err)
	}

	return &chat.User{ID: id, Email: email, Nickname: nickname}, nil
}

// GetUserByEmail returns the account for email, including the password
// hash for credential verification.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `
		SELECT id, email, nickname, password_hash
		FROM users
		WHERE email = $1`

	var a Account
	err := s.db.QueryRowContext(ctx, query, email).Scan(&a.ID, &a.Email, &a.Nickname, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user by email: %w", err)
	}
	return &a, nil
}

// GetUserByID returns the public projection of a user.
func (s *Store) GetUserByID(ctx context.Context, id string) (*chat.User, error) {
	const query = `
		SELECT id, email, nickname
		FROM users
		WHERE id = $1`

	var u chat.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.Nickname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}

// GetAccountByID returns the account including the password hash, used
// for the password-change flow.
func (s *Store) GetAccountByID(ctx context.Context, id string) (*Account, error) {
	const query = `
		SELECT id, email, nickname, password_hash
		FROM users
		WHERE id = $1`

	var a Account
	err := s.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Email, &a.Nickname, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get account: %w", err)
	}
	return &a, nil
}

// UpdateNickname changes a user's display name.
func (s *Store) UpdateNickname(ctx context.Context, userID, nickname string) error {
	const query = `
		UPDATE users
		SET nickname = $2, updated_at = NOW()
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, userID, nickname)
	if err != nil {
		return fmt.Errorf("store: update nickname: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces a user's credential hash.
func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("store: update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
