package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminOptions describes the account created on a fresh install
type AdminOptions struct {
	Email           string
	DisplayName     string
	PasswordLength  int
	CredentialsDir  string
	CredentialsFile string
}

// GeneratePassword returns length characters of base64url-encoded randomness
func GeneratePassword(length int) (string, error) {
	b := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random password: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(b)
	if len(encoded) < length {
		return "", fmt.Errorf("failed to generate password of required length")
	}
	return encoded[:length], nil
}

// InitializeDefaultAdmin creates the admin account when no user exists yet and
// writes its credentials to a 0600 file. It returns the path written, or "" when
// the install was not fresh.
func (d *DB) InitializeDefaultAdmin(ctx context.Context, opts AdminOptions) (string, error) {
	fresh, err := d.IsFreshInstall(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to check fresh install status: %w", err)
	}
	if !fresh {
		d.logger.Debug("existing users found, skipping admin creation")
		return "", nil
	}

	password, err := GeneratePassword(opts.PasswordLength)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := d.CreateUser(ctx, opts.Email, string(hash), opts.DisplayName); err != nil {
		return "", fmt.Errorf("failed to create admin user: %w", err)
	}

	path := filepath.Join(opts.CredentialsDir, opts.CredentialsFile)
	content := fmt.Sprintf("Username: %s\nPassword: %s\n", opts.Email, password)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write credentials file: %w", err)
	}

	d.logger.Info("default admin user created",
		zap.String("email", opts.Email),
		zap.String("credentials_file", path))
	return path, nil
}
