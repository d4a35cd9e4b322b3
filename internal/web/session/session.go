// Package session provides cookie sessions with idle and absolute expiry over
// pluggable stores.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrSessionNotFound is returned by stores for unknown or expired IDs
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	// Save writes s; the store may drop it once s.ExpiresAt has passed
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions whose ExpiresAt is before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Close() error
}

// Session is the server-side state behind a session cookie
type Session struct {
	ID             string         `json:"id"`
	UserID         int64          `json:"user_id,omitempty"`
	Data           map[string]any `json:"data"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	// ExpiresAt is the earlier of the idle and absolute deadlines
	ExpiresAt time.Time `json:"expires_at"`

	isNew     bool
	modified  bool
	destroyed bool
	// oldID is set when the ID was rotated during this request
	oldID string
}

func newSession(now time.Time) (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:             id,
		Data:           make(map[string]any),
		CreatedAt:      now,
		LastActivityAt: now,
		isNew:          true,
	}, nil
}

// Get returns a value from the session data
func (s *Session) Get(key string) (any, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// GetString returns a string value or ""
func (s *Session) GetString(key string) string {
	v, _ := s.Data[key].(string)
	return v
}

// Put stores a value in the session data
func (s *Session) Put(key string, value any) {
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	s.Data[key] = value
	s.modified = true
}

// Remove deletes a value from the session data
func (s *Session) Remove(key string) {
	if _, ok := s.Data[key]; ok {
		delete(s.Data, key)
		s.modified = true
	}
}

// ClearUser detaches the user, keeping the session ID
func (s *Session) ClearUser() {
	if s.UserID != 0 {
		s.UserID = 0
		s.modified = true
	}
}

// Authenticated reports whether a user is attached
func (s *Session) Authenticated() bool {
	return s.UserID != 0
}

// expired reports whether either deadline has passed at now
func (s *Session) expired(now time.Time, idle, absolute time.Duration) bool {
	if idle > 0 && now.Sub(s.LastActivityAt) >= idle {
		return true
	}
	if absolute > 0 && now.Sub(s.CreatedAt) >= absolute {
		return true
	}
	return false
}

// touch records activity and recomputes ExpiresAt
func (s *Session) touch(now time.Time, idle, absolute time.Duration) {
	s.LastActivityAt = now
	deadline := now.Add(idle)
	if abs := s.CreatedAt.Add(absolute); absolute > 0 && (idle <= 0 || abs.Before(deadline)) {
		deadline = abs
	}
	s.ExpiresAt = deadline
}

func encode(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(b []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if s.Data == nil {
		s.Data = make(map[string]any)
	}
	return &s, nil
}

// generateID returns 32 random bytes, base64url encoded
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
