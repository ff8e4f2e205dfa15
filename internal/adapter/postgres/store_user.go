package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethicsdesk/ethicsdesk/internal/domain/user"
)

const userColumns = `id, directory_id, email, name, role, chamber, enabled, created_at, updated_at`

func scanUser(row scannable) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.DirectoryID, &u.Email, &u.Name, &u.Role,
		&u.Chamber, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundWrap(err, "get user %s", id)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundWrap(err, "get user by email %s", email)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (directory_id, email, name, role, chamber, enabled)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id, created_at, updated_at`,
		u.DirectoryID, u.Email, u.Name, string(u.Role), u.Chamber, u.Enabled,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET directory_id = $2, email = $3, name = $4, role = $5,
			chamber = $6, enabled = $7, updated_at = now()
		 WHERE id = $1`,
		u.ID, u.DirectoryID, u.Email, u.Name, string(u.Role), u.Chamber, u.Enabled)
	return execExpectOne(tag, err, "update user %s", u.ID)
}

// --- API keys ---

func (s *Store) CreateAPIKey(ctx context.Context, k *user.APIKey) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (user_id, name, prefix, key_hash, scopes, expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING id, created_at`,
		k.UserID, k.Name, k.Prefix, k.KeyHash, k.Scopes, nullTime(k.ExpiresAt),
	).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *Store) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*user.APIKey, error) {
	var k user.APIKey
	var expires *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, prefix, key_hash, scopes, expires_at, created_at
		 FROM api_keys WHERE prefix = $1`, prefix).
		Scan(&k.ID, &k.UserID, &k.Name, &k.Prefix, &k.KeyHash, &k.Scopes, &expires, &k.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get api key %s", prefix)
	}
	if expires != nil {
		k.ExpiresAt = *expires
	}
	return &k, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete api key %s", id)
}
