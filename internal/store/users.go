package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/dragonbytelabs/dz/internal/avatar"
	"github.com/dragonbytelabs/dz/internal/models"
)

const userColumns = `id, email, password_hash, display_name, avatar_url, user_hash, created_at, updated_at`

// newUserHash returns 64 random bytes as unpadded base64url
func newUserHash() (string, error) {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate user hash: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateUser inserts a user with a generated avatar and public hash
func (d *DB) CreateUser(ctx context.Context, email, passwordHash, displayName string) (*models.User, error) {
	hash, err := newUserHash()
	if err != nil {
		return nil, err
	}

	var u models.User
	err = d.get(ctx, &u, `
INSERT INTO users (email, password_hash, display_name, avatar_url, user_hash)
VALUES (?, ?, ?, ?, ?)
RETURNING `+userColumns,
		email, passwordHash, displayName, avatar.Generate(displayName), hash)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail returns ErrNotFound when no user has email
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := d.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByHash looks a user up by the public user_hash stored in sessions and tokens
func (d *DB) GetUserByHash(ctx context.Context, userHash string) (*models.User, error) {
	var u models.User
	if err := d.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE user_hash = ?`, userHash); err != nil {
		return nil, err
	}
	return &u, nil
}

func (d *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := d.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// CountUsers returns the number of registered users
func (d *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := d.get(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}
	return n, nil
}

// IsFreshInstall reports whether no user has been created yet
func (d *DB) IsFreshInstall(ctx context.Context) (bool, error) {
	n, err := d.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (d *DB) UpdateUserAvatar(ctx context.Context, id int64, avatarURL string) error {
	return d.execOne(ctx, `UPDATE users SET avatar_url = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, avatarURL, id)
}

func (d *DB) UpdateUserDisplayName(ctx context.Context, id int64, displayName string) error {
	return d.execOne(ctx, `UPDATE users SET display_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, displayName, id)
}

// UpdateUserEmail returns ErrUniqueViolation when the address is taken
func (d *DB) UpdateUserEmail(ctx context.Context, id int64, email string) error {
	return d.execOne(ctx, `UPDATE users SET email = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, email, id)
}

func (d *DB) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return d.execOne(ctx, `UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, passwordHash, id)
}
