package session

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type contextKey int

const sessionKey contextKey = iota

// Config holds cookie and lifetime settings
type Config struct {
	CookieName string
	CookiePath string
	Secure     bool
	SameSite   http.SameSite

	IdleTimeout     time.Duration
	AbsoluteTimeout time.Duration
	GCInterval      time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		CookieName:      "session_id",
		CookiePath:      "/",
		SameSite:        http.SameSiteLaxMode,
		IdleTimeout:     time.Hour,
		AbsoluteTimeout: 12 * time.Hour,
		GCInterval:      30 * time.Minute,
	}
}

// Manager loads the session for each request and persists it afterwards
type Manager struct {
	store  Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a manager over store
func NewManager(store Store, cfg Config, logger *zap.Logger) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "session_id"
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Store returns the backing store
func (m *Manager) Store() Store { return m.store }

// CookieName returns the configured cookie name
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// LoadAndSave attaches the request's session to its context and persists it
// exactly once, before the first byte of the response.
func (m *Manager) LoadAndSave(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.load(r)
		if err != nil {
			m.logger.Error("failed to create session", zap.Error(err))
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		sw := &sessionWriter{ResponseWriter: w, manager: m, session: sess, ctx: ctx}
		next.ServeHTTP(sw, r.WithContext(ctx))
		sw.commit()
	})
}

func (m *Manager) load(r *http.Request) (*Session, error) {
	now := m.now()
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
		sess, err := m.store.Get(r.Context(), c.Value)
		switch {
		case err == nil && !sess.expired(now, m.cfg.IdleTimeout, m.cfg.AbsoluteTimeout):
			return sess, nil
		case err == nil:
			if err := m.store.Delete(r.Context(), sess.ID); err != nil {
				m.logger.Warn("failed to delete expired session", zap.Error(err))
			}
		case !errors.Is(err, ErrSessionNotFound):
			m.logger.Warn("failed to load session", zap.Error(err))
		}
	}
	return newSession(now)
}

// save persists sess and writes its cookie into h
func (m *Manager) save(ctx context.Context, h http.Header, sess *Session) {
	if sess.oldID != "" {
		if err := m.store.Delete(ctx, sess.oldID); err != nil {
			m.logger.Warn("failed to delete rotated session", zap.Error(err))
		}
	}

	if sess.destroyed {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			m.logger.Warn("failed to delete session", zap.Error(err))
		}
		m.writeCookie(h, "", time.Unix(0, 0), -1)
		return
	}

	// untouched anonymous sessions are never stored
	if sess.isNew && !sess.modified && !sess.Authenticated() {
		return
	}

	sess.touch(m.now(), m.cfg.IdleTimeout, m.cfg.AbsoluteTimeout)
	if err := m.store.Save(ctx, sess); err != nil {
		m.logger.Error("failed to save session", zap.Error(err))
		return
	}

	var expires time.Time
	if m.cfg.AbsoluteTimeout > 0 {
		expires = sess.CreatedAt.Add(m.cfg.AbsoluteTimeout)
	}
	m.writeCookie(h, sess.ID, expires, 0)
}

func (m *Manager) writeCookie(h http.Header, value string, expires time.Time, maxAge int) {
	c := &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     m.cfg.CookiePath,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: m.cfg.SameSite,
	}
	if v := c.String(); v != "" {
		h.Add("Set-Cookie", v)
	}
}

// FromContext returns the request's session, or nil outside LoadAndSave
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// RenewID rotates the session ID, keeping its data. The old ID is deleted
// when the session is saved.
func (m *Manager) RenewID(ctx context.Context) error {
	sess := FromContext(ctx)
	if sess == nil {
		return ErrSessionNotFound
	}
	id, err := generateID()
	if err != nil {
		return err
	}
	if sess.oldID == "" && !sess.isNew {
		sess.oldID = sess.ID
	}
	sess.ID = id
	sess.modified = true
	return nil
}

// Login rotates the ID and attaches userID
func (m *Manager) Login(ctx context.Context, userID int64) error {
	if err := m.RenewID(ctx); err != nil {
		return err
	}
	sess := FromContext(ctx)
	sess.UserID = userID
	// a fresh login starts a new absolute lifetime
	sess.CreatedAt = m.now()
	return nil
}

// Logout rotates the ID and clears the user and data
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.RenewID(ctx); err != nil {
		return err
	}
	sess := FromContext(ctx)
	sess.UserID = 0
	sess.Data = make(map[string]any)
	return nil
}

// Destroy deletes the session and expires the cookie
func (m *Manager) Destroy(ctx context.Context) {
	if sess := FromContext(ctx); sess != nil {
		sess.destroyed = true
	}
}

// RunGC deletes expired sessions every GCInterval until ctx is done
func (m *Manager) RunGC(ctx context.Context) {
	if m.cfg.GCInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.store.DeleteExpired(ctx, m.now())
			if err != nil {
				m.logger.Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.logger.Debug("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}

// sessionWriter saves the session before the response is committed
type sessionWriter struct {
	http.ResponseWriter
	manager   *Manager
	session   *Session
	ctx       context.Context
	committed bool
}

func (sw *sessionWriter) commit() {
	if sw.committed {
		return
	}
	sw.committed = true
	// detach from request cancellation so a client hangup still persists
	ctx, cancel := context.WithTimeout(context.WithoutCancel(sw.ctx), 5*time.Second)
	defer cancel()
	sw.manager.save(ctx, sw.Header(), sw.session)
}

func (sw *sessionWriter) WriteHeader(statusCode int) {
	sw.commit()
	sw.ResponseWriter.WriteHeader(statusCode)
}

func (sw *sessionWriter) Write(b []byte) (int, error) {
	sw.commit()
	return sw.ResponseWriter.Write(b)
}

func (sw *sessionWriter) Flush() {
	sw.commit()
	_ = http.NewResponseController(sw.ResponseWriter).Flush()
}

// Hijack commits the session before handing the connection over
func (sw *sessionWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	sw.commit()
	return http.NewResponseController(sw.ResponseWriter).Hijack()
}

func (sw *sessionWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
