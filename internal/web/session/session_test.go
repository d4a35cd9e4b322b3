package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/dragonbytelabs/dz/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStored(t *testing.T, userID int64, ttl time.Duration) *Session {
	t.Helper()
	s, err := newSession(time.Now())
	require.NoError(t, err)
	s.UserID = userID
	s.Put("theme", "dark")
	s.ExpiresAt = time.Now().Add(ttl)
	return s
}

// storeContract runs the behaviour every Store must share
func storeContract(t *testing.T, st Store) {
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		_, err := st.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		s := newStored(t, 42, time.Hour)
		require.NoError(t, st.Save(ctx, s))

		got, err := st.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, int64(42), got.UserID)
		assert.Equal(t, "dark", got.GetString("theme"))
		assert.WithinDuration(t, s.ExpiresAt, got.ExpiresAt, time.Second)
	})

	t.Run("update", func(t *testing.T) {
		s := newStored(t, 1, time.Hour)
		require.NoError(t, st.Save(ctx, s))
		s.Put("theme", "light")
		s.UserID = 0
		require.NoError(t, st.Save(ctx, s))

		got, err := st.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "light", got.GetString("theme"))
		assert.False(t, got.Authenticated())
	})

	t.Run("delete", func(t *testing.T) {
		s := newStored(t, 1, time.Hour)
		require.NoError(t, st.Save(ctx, s))
		require.NoError(t, st.Delete(ctx, s.ID))
		_, err := st.Get(ctx, s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("returns copies", func(t *testing.T) {
		s := newStored(t, 1, time.Hour)
		require.NoError(t, st.Save(ctx, s))
		a, err := st.Get(ctx, s.ID)
		require.NoError(t, err)
		a.Put("theme", "changed")
		b, err := st.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "dark", b.GetString("theme"))
	})
}

func TestMemoryStore(t *testing.T) {
	st := NewMemoryStore()
	storeContract(t, st)

	t.Run("delete expired", func(t *testing.T) {
		fresh := newStored(t, 1, time.Hour)
		stale := newStored(t, 1, time.Hour)
		ctx := context.Background()
		require.NoError(t, st.Save(ctx, fresh))
		require.NoError(t, st.Save(ctx, stale))
		before := st.Count()

		n, err := st.DeleteExpired(ctx, time.Now().Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(before), n)
		assert.Zero(t, st.Count())
	})

	t.Run("expired get", func(t *testing.T) {
		s := newStored(t, 1, time.Minute)
		require.NoError(t, st.Save(context.Background(), s))
		st.now = func() time.Time { return time.Now().Add(time.Hour) }
		defer func() { st.now = time.Now }()
		_, err := st.Get(context.Background(), s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestDatabaseStore(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	st := NewDatabaseStore(db.SQLX())
	storeContract(t, st)

	t.Run("delete expired", func(t *testing.T) {
		s := newStored(t, 7, time.Minute)
		require.NoError(t, st.Save(ctx, s))
		n, err := st.DeleteExpired(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
		_, err = st.Get(ctx, s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	st := NewRedisStore(client, "")
	storeContract(t, st)

	t.Run("ttl follows expiry", func(t *testing.T) {
		s := newStored(t, 1, 10*time.Minute)
		require.NoError(t, st.Save(context.Background(), s))
		ttl := mr.TTL(DefaultRedisPrefix + s.ID)
		assert.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 2)

		mr.FastForward(11 * time.Minute)
		_, err := st.Get(context.Background(), s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("past expiry deletes", func(t *testing.T) {
		s := newStored(t, 1, time.Hour)
		require.NoError(t, st.Save(context.Background(), s))
		s.ExpiresAt = time.Now().Add(-time.Second)
		require.NoError(t, st.Save(context.Background(), s))
		assert.False(t, mr.Exists(DefaultRedisPrefix+s.ID))
	})
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *testClock) {
	t.Helper()
	st := NewMemoryStore()
	clock := &testClock{t: time.Now()}
	cfg := DefaultConfig()
	cfg.IdleTimeout = time.Hour
	cfg.AbsoluteTimeout = 12 * time.Hour
	m := NewManager(st, cfg, zaptest.NewLogger(t))
	m.now = clock.now
	return m, st, clock
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func serve(h http.Handler, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestManagerAnonymousNotPersisted(t *testing.T) {
	m, st, _ := newTestManager(t)
	h := m.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, FromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := serve(h, nil)
	assert.Nil(t, sessionCookie(t, rec, "session_id"))
	assert.Zero(t, st.Count())
}

func TestManagerLoginPersistsOnWriteOnly(t *testing.T) {
	m, st, _ := newTestManager(t)
	h := m.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, m.Login(r.Context(), 9))
		_, _ = w.Write([]byte("ok"))
	}))

	rec := serve(h, nil)
	c := sessionCookie(t, rec, "session_id")
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 1, st.Count())

	got, err := st.Get(context.Background(), c.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.UserID)
}

func TestManagerPersistsWithoutWrite(t *testing.T) {
	m, st, _ := newTestManager(t)
	h := m.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Put("k", "v")
	}))
	rec := serve(h, nil)
	require.NotNil(t, sessionCookie(t, rec, "session_id"))
	assert.Equal(t, 1, st.Count())
}

func TestManagerRotation(t *testing.T) {
	m, st, _ := newTestManager(t)
	var seen []int64
	h := m.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("op") {
		case "login":
			require.NoError(t, m.Login(r.Context(), 3))
		case "logout":
			require.NoError(t, m.Logout(r.Context()))
		}
		seen = append(seen, FromContext(r.Context()).UserID)
		w.WriteHeader(http.StatusOK)
	}))

	do := func(op string, c *http.Cookie) *http.Cookie {
		req := httptest.NewRequest(http.MethodPost, "/?op="+op, nil)
		if c != nil {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if nc := sessionCookie(t, rec, "session_id"); nc != nil {
			return nc
		}
		return c
	}

	first := do("login", nil)
	require.NotNil(t, first)
	same := do("", first)
	assert.Equal(t, first.Value, same.Value)

	second := do("login", first)
	assert.NotEqual(t, first.Value, second.Value)
	_, err := st.Get(context.Background(), first.Value)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	third := do("logout", second)
	assert.NotEqual(t, second.Value, third.Value)
	_, err = st.Get(context.Background(), second.Value)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	do("", third)
	assert.Equal(t, []int64{3, 3, 3, 0, 0}, seen)
}

func TestManagerExpiry(t *testing.T) {
	// fifteen requests 50 minutes apart stay under the idle limit but pass 12h
	absolute := make([]time.Duration, 15)
	for i := range absolute {
		absolute[i] = 50 * time.Minute
	}

	tests := []struct {
		name   string
		steps  []time.Duration
		wantIn bool
	}{
		{name: "active", steps: []time.Duration{30 * time.Minute}, wantIn: true},
		{name: "idle", steps: []time.Duration{61 * time.Minute}, wantIn: false},
		{name: "absolute", steps: absolute, wantIn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, clock := newTestManager(t)
			var authed bool
			h := m.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("login") != "" {
					require.NoError(t, m.Login(r.Context(), 1))
				}
				authed = FromContext(r.Context()).Authenticated()
			}))

			req := httptest.NewRequest(http.MethodGet, "/?login=1", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			cookie := sessionCookie(t, rec, "session_id")
			require.NotNil(t, cookie)

			for _, d := range tt.steps {
				clock.advance(d)
				serve(h, cookie)
			}
			assert.Equal(t, tt.wantIn, authed)
		})
	}
}

func TestManagerDestroy(t *testing.T) {
	m, st, _ := newTestManager(t)
	h := m.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("destroy") != "" {
			m.Destroy(r.Context())
			return
		}
		require.NoError(t, m.Login(r.Context(), 1))
	}))

	rec := serve(h, nil)
	c := sessionCookie(t, rec, "session_id")
	require.NotNil(t, c)

	req := httptest.NewRequest(http.MethodGet, "/?destroy=1", nil)
	req.AddCookie(c)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	cleared := sessionCookie(t, rec, "session_id")
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Zero(t, st.Count())
}

func TestManagerGC(t *testing.T) {
	st := NewMemoryStore()
	cfg := DefaultConfig()
	cfg.GCInterval = 10 * time.Millisecond
	m := NewManager(st, cfg, zaptest.NewLogger(t))

	s, err := newSession(time.Now())
	require.NoError(t, err)
	s.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, st.Save(context.Background(), s))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunGC(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return st.Count() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSessionWriterUnwrap(t *testing.T) {
	m, _, _ := newTestManager(t)
	h := m.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		require.True(t, ok)
		assert.NotNil(t, u.Unwrap())
	}))
	serve(h, nil)
}
