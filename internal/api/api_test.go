package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/plugins"
	"github.com/dragonbytelabs/dz/internal/search"
	"github.com/dragonbytelabs/dz/internal/storage"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/themes"
	"github.com/dragonbytelabs/dz/internal/vault"
	"github.com/dragonbytelabs/dz/internal/web/auth"
	"github.com/dragonbytelabs/dz/internal/web/middleware"
	"github.com/dragonbytelabs/dz/internal/web/ratelimit"
	"github.com/dragonbytelabs/dz/internal/web/session"
)

const testPassword = "correct-horse"

type testEnv struct {
	t       *testing.T
	db      *store.DB
	vault   *vault.Vault
	plugins *plugins.Registry
	themes  string
	uploads string
	srv     *httptest.Server
}

type client struct {
	env  *testEnv
	http *http.Client
	// bearer replaces the cookie session when set
	bearer string
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	db, err := store.Open(ctx, "sqlite", filepath.Join(dir, "dz.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Migrate(ctx)
	require.NoError(t, err)
	require.NoError(t, db.SeedSettings(ctx))

	v, err := vault.New(filepath.Join(dir, "vault"))
	require.NoError(t, err)
	uploads := filepath.Join(dir, "uploads")
	media, err := storage.NewLocalStore(uploads, "/uploads")
	require.NoError(t, err)
	themeDir := filepath.Join(dir, "themes")
	tm, err := themes.NewManager(themeDir, logger)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(strings.Repeat("s", 32), time.Hour)
	require.NoError(t, err)

	sessions := session.NewManager(session.NewMemoryStore(), session.DefaultConfig(), logger)
	registry := plugins.NewRegistry(plugins.Context{Logger: logger})

	cfg := Config{
		Version:  "test",
		Store:    db,
		Sessions: sessions,
		Tokens:   tokens,
		Media:    media,
		Themes:   tm,
		Vault:    v,
		Index:    search.NewIndex(v, logger),
		Plugins:  registry,
		Logger:   logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	a, err := New(cfg)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(sessions.LoadAndSave)
	r.Use(middleware.NewAuthenticator(db, cfg.Tokens, logger).Authenticate)
	a.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{t: t, db: db, vault: v, plugins: registry, themes: themeDir, uploads: uploads, srv: srv}
}

func (e *testEnv) client() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	return &client{env: e, http: &http.Client{Jar: jar}}
}

func (e *testEnv) createUser(email string) *models.User {
	e.t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(e.t, err)
	u, err := e.db.CreateUser(context.Background(), email, hash, strings.Split(email, "@")[0])
	require.NoError(e.t, err)
	return u
}

// loggedIn creates a user and returns a client holding their session
func (e *testEnv) loggedIn(email string) (*client, *models.User) {
	e.t.Helper()
	u := e.createUser(email)
	c := e.client()
	res := c.do(http.MethodPost, "/api/login", map[string]string{"email": email, "password": testPassword})
	require.Equal(e.t, http.StatusOK, res.status, res.raw)
	return c, u
}

type result struct {
	status int
	header http.Header
	raw    string
}

func (r result) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.raw), &out), r.raw)
	return out
}

func (r result) list(t *testing.T) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal([]byte(r.raw), &out), r.raw)
	return out
}

func (c *client) do(method, path string, body any) result {
	c.env.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.env.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.env.srv.URL+path, rd)
	require.NoError(c.env.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

func (c *client) send(req *http.Request) result {
	c.env.t.Helper()
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	res, err := c.http.Do(req)
	require.NoError(c.env.t, err)
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(c.env.t, err)
	return result{status: res.StatusCode, header: res.Header, raw: string(b)}
}

func TestNewRequiresStoreAndSessions(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "store is required")

	db, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "x.db"), nil)
	require.NoError(t, err)
	defer db.Close()
	_, err = New(Config{Store: db})
	assert.ErrorContains(t, err, "session manager is required")
}

func TestInfoAndHealth(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	res := c.do(http.MethodGet, "/api/info", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, map[string]any{"app": "dz", "version": "test"}, res.json(t))

	res = c.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.json(t)["status"])

	require.NoError(t, env.db.Close())
	res = c.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	body := res.json(t)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body, "details")
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	for _, path := range []string{
		"/api/collections", "/api/media", "/api/posts", "/api/themes", "/api/plugins",
		"/api/files", "/api/tree", "/api/palette", "/api/settings", "/api/teams",
		"/api/admin/tables", "/api/admin/user/profile",
	} {
		t.Run(path, func(t *testing.T) {
			res := c.do(http.MethodGet, path, nil)
			assert.Equal(t, http.StatusUnauthorized, res.status)
		})
	}
}

func TestRegister(t *testing.T) {
	body := func(email, pw, confirm string) map[string]string {
		return map[string]string{"email": email, "password": pw, "confirmPassword": confirm}
	}

	t.Run("first user on a fresh install", func(t *testing.T) {
		env := newTestEnv(t)
		c := env.client()

		res := c.do(http.MethodPost, "/api/register", body(" Admin@Example.com ", testPassword, testPassword))
		require.Equal(t, http.StatusOK, res.status, res.raw)
		assert.Equal(t, map[string]any{"success": true, "redirect": LoginPath}, res.json(t))

		u, err := env.db.GetUserByEmail(context.Background(), "admin@example.com")
		require.NoError(t, err)
		assert.Equal(t, "admin", u.DisplayName)
		assert.True(t, auth.CheckPassword(testPassword, u.PasswordHash))

		me := c.do(http.MethodGet, "/api/me", nil).json(t)
		assert.Equal(t, true, me["authenticated"])
	})

	t.Run("closed once users exist", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser("owner@example.com")

		res := env.client().do(http.MethodPost, "/api/register", body("new@example.com", testPassword, testPassword))
		assert.Equal(t, http.StatusForbidden, res.status)
	})

	t.Run("open when enabled", func(t *testing.T) {
		env := newTestEnv(t)
		env.createUser("owner@example.com")
		require.NoError(t, env.db.SetSetting(context.Background(), models.SettingPublicRegisterEnabled, "true"))

		res := env.client().do(http.MethodPost, "/api/register", body("new@example.com", testPassword, testPassword))
		assert.Equal(t, http.StatusOK, res.status)

		res = env.client().do(http.MethodPost, "/api/register", body("NEW@example.com", testPassword, testPassword))
		assert.Equal(t, http.StatusConflict, res.status)
	})

	tests := []struct {
		name string
		in   map[string]string
		msg  string
	}{
		{"mismatch", body("a@example.com", testPassword, "other-password"), "passwords do not match"},
		{"bad email", body("not-an-email", testPassword, testPassword), "invalid email address"},
		{"display form email", body("Bob <bob@example.com>", testPassword, testPassword), "invalid email address"},
		{"short password", body("a@example.com", "short", "short"), auth.ErrPasswordTooShort.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			res := env.client().do(http.MethodPost, "/api/register", tt.in)
			assert.Equal(t, http.StatusBadRequest, res.status)
			assert.Equal(t, tt.msg, res.json(t)["message"])
		})
	}
}

func TestLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("user@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		status   int
	}{
		{"unknown user", "nobody@example.com", testPassword, http.StatusUnauthorized},
		{"wrong password", "user@example.com", "wrong-password", http.StatusUnauthorized},
		{"case insensitive email", " USER@example.com", testPassword, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.client().do(http.MethodPost, "/api/login", map[string]string{"email": tt.email, "password": tt.password})
			assert.Equal(t, tt.status, res.status, res.raw)
		})
	}

	c := env.client()
	res := c.do(http.MethodPost, "/api/login", map[string]string{"email": "user@example.com", "password": testPassword})
	assert.Equal(t, map[string]any{"success": true, "redirect": AdminPath}, res.json(t))

	me := c.do(http.MethodGet, "/api/me", nil).json(t)
	assert.Equal(t, true, me["authenticated"])
	user := me["user"].(map[string]any)
	assert.Equal(t, "user@example.com", user["email"])
	assert.NotEmpty(t, user["user_id"])
	assert.Equal(t, []any{}, me["teams"])

	res = c.do(http.MethodPost, "/api/logout", nil)
	assert.Equal(t, map[string]any{"success": true, "redirect": LoginPath}, res.json(t))
	assert.Equal(t, map[string]any{"authenticated": false}, c.do(http.MethodGet, "/api/me", nil).json(t))
}

func TestLoginPadsResponses(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.MinResponseTime = 150 * time.Millisecond })

	start := time.Now()
	res := env.client().do(http.MethodPost, "/api/login", map[string]string{"email": "x@example.com", "password": "whatever1"})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestLoginRateLimit(t *testing.T) {
	limiter := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{Capacity: 2, Window: time.Hour})
	t.Cleanup(func() { limiter.Close() })
	env := newTestEnv(t, func(c *Config) { c.LoginLimiter = limiter })
	c := env.client()

	creds := map[string]string{"email": "x@example.com", "password": "whatever1"}
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/login", creds).status)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/login", creds).status)

	res := c.do(http.MethodPost, "/api/login", creds)
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.NotEmpty(t, res.header.Get("Retry-After"))

	// other endpoints are not throttled
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/info", nil).status)
}

func TestPublicAuth(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	assert.Equal(t, map[string]any{"login_enabled": true, "register_enabled": false},
		c.do(http.MethodGet, "/api/public-auth", nil).json(t))

	require.NoError(t, env.db.SetSetting(context.Background(), models.SettingPublicRegisterEnabled, "true"))
	assert.Equal(t, true, c.do(http.MethodGet, "/api/public-auth", nil).json(t)["register_enabled"])
}

func TestBearerTokens(t *testing.T) {
	env := newTestEnv(t)
	c, u := env.loggedIn("token@example.com")

	res := c.do(http.MethodPost, "/api/tokens", nil)
	require.Equal(t, http.StatusCreated, res.status, res.raw)
	body := res.json(t)
	assert.Equal(t, "Bearer", body["token_type"])
	token := body["token"].(string)
	require.NotEmpty(t, token)

	api := env.client()
	api.bearer = token
	profile := api.do(http.MethodGet, "/api/admin/user/profile", nil)
	require.Equal(t, http.StatusOK, profile.status)
	assert.Equal(t, u.UserHash, profile.json(t)["user"].(map[string]any)["user_id"])

	api.bearer = token + "x"
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/admin/user/profile", nil).status)
}

func TestTokensDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Tokens = nil })
	c, _ := env.loggedIn("token@example.com")
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/tokens", nil).status)
}
