package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// DatabaseStore keeps sessions in the sessions table
type DatabaseStore struct {
	db *sqlx.DB
}

// NewDatabaseStore uses db, whose schema is managed by migrations
func NewDatabaseStore(db *sqlx.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

type sessionRow struct {
	ID             string         `db:"id"`
	UserID         sql.NullString `db:"user_id"`
	Data           string         `db:"data"`
	CreatedAt      time.Time      `db:"created_at"`
	LastActivityAt time.Time      `db:"last_activity_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
}

func (d *DatabaseStore) Get(ctx context.Context, id string) (*Session, error) {
	var row sessionRow
	err := d.db.GetContext(ctx, &row, d.db.Rebind(
		`SELECT id, user_id, data, created_at, last_activity_at, expires_at FROM sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	if !time.Now().Before(row.ExpiresAt) {
		return nil, ErrSessionNotFound
	}

	s, err := decode([]byte(row.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	s.ID = row.ID
	s.CreatedAt = row.CreatedAt
	s.LastActivityAt = row.LastActivityAt
	s.ExpiresAt = row.ExpiresAt
	s.UserID = 0
	if row.UserID.Valid {
		if uid, err := strconv.ParseInt(row.UserID.String, 10, 64); err == nil {
			s.UserID = uid
		}
	}
	return s, nil
}

func (d *DatabaseStore) Save(ctx context.Context, s *Session) error {
	data, err := encode(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	var userID any
	if s.UserID != 0 {
		userID = strconv.FormatInt(s.UserID, 10)
	}

	_, err = d.db.ExecContext(ctx, d.db.Rebind(`
		INSERT INTO sessions (id, user_id, data, created_at, last_activity_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			data = excluded.data,
			last_activity_at = excluded.last_activity_at,
			expires_at = excluded.expires_at`),
		s.ID, userID, string(data), s.CreatedAt.UTC(), s.LastActivityAt.UTC(), s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("database insert error: %w", err)
	}
	return nil
}

func (d *DatabaseStore) Delete(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, d.db.Rebind(`DELETE FROM sessions WHERE id = ?`), id); err != nil {
		return fmt.Errorf("database delete error: %w", err)
	}
	return nil
}

func (d *DatabaseStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, d.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("session cleanup error: %w", err)
	}
	return res.RowsAffected()
}

// Close leaves the shared database open
func (d *DatabaseStore) Close() error { return nil }
