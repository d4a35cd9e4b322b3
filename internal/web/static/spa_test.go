package static

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestSPA(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"index.html":       "<html><head></head><body>index</body></html>",
		"login.html":       "<html><body>login</body></html>",
		"assets/app.js":    "console.log(1)",
		"docs/index.html":  "docs",
		"assets/style.css": "body{}",
	})
	spa := &SPA{
		Root:     root,
		Rewrites: map[string]string{"/login": "login.html", "/register": "register.html"},
		MaxAge:   3600,
	}

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
		wantType   string
	}{
		{name: "root", path: "/", wantStatus: 200, wantBody: "index", wantType: "text/html; charset=utf-8"},
		{name: "asset", path: "/assets/app.js", wantStatus: 200, wantBody: "console.log(1)", wantType: "text/javascript; charset=utf-8"},
		{name: "css", path: "/assets/style.css", wantStatus: 200, wantType: "text/css; charset=utf-8"},
		{name: "rewrite", path: "/login", wantStatus: 200, wantBody: "login"},
		{name: "missing rewrite target", path: "/register", wantStatus: 200, wantBody: "index"},
		{name: "client route", path: "/posts/42", wantStatus: 200, wantBody: "index"},
		{name: "missing asset", path: "/assets/nope.js", wantStatus: 404},
		{name: "directory index", path: "/docs/", wantStatus: 200, wantBody: "docs"},
		{name: "traversal", path: "/../../secret.txt", wantStatus: 404},
		{name: "post", method: http.MethodPost, path: "/", wantStatus: 405},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := httptest.NewRecorder()
			spa.ServeHTTP(rec, httptest.NewRequest(method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestSPACacheHeaders(t *testing.T) {
	root := writeFiles(t, map[string]string{"index.html": "x", "a.js": "y"})
	spa := &SPA{Root: root, MaxAge: 60}

	rec := httptest.NewRecorder()
	spa.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a.js", nil))
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/a.js", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	spa.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	rec = httptest.NewRecorder()
	spa.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestSPAInjection(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"index.html": "<html><head><title>t</title></head><body class=\"x\"><main>hi</main></body></html>",
		"a.js":       "<body>",
	})
	spa := &SPA{
		Root: root,
		Inject: func(r *http.Request) (Injection, bool) {
			return Injection{Head: "<style>bar</style>", Body: "<div id=\"bar\"></div>"}, r.Header.Get("X-Authed") != ""
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Authed", "1")
	rec := httptest.NewRecorder()
	spa.ServeHTTP(rec, req)
	assert.Equal(t,
		"<html><head><title>t</title><style>bar</style></head><body class=\"x\"><div id=\"bar\"></div><main>hi</main></body></html>",
		rec.Body.String())
	assert.Empty(t, rec.Header().Get("ETag"))

	rec = httptest.NewRecorder()
	spa.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotContains(t, rec.Body.String(), "bar")

	// non-HTML assets are never rewritten
	req = httptest.NewRequest(http.MethodGet, "/a.js", nil)
	req.Header.Set("X-Authed", "1")
	rec = httptest.NewRecorder()
	spa.ServeHTTP(rec, req)
	assert.Equal(t, "<body>", rec.Body.String())
}

func TestInjectHTML(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		inj  Injection
		want string
	}{
		{name: "upper case tags", doc: "<HEAD></HEAD><BODY>x", inj: Injection{Head: "h", Body: "b"}, want: "<HEAD>h</HEAD><BODY>bx"},
		{name: "no tags", doc: "plain", inj: Injection{Head: "h", Body: "b"}, want: "bhplain"},
		{name: "empty injection", doc: "<body>x</body>", want: "<body>x</body>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(InjectHTML([]byte(tt.doc), tt.inj)))
		})
	}
}

func TestExists(t *testing.T) {
	assert.True(t, (&SPA{Root: writeFiles(t, map[string]string{"index.html": "x"})}).Exists())
	assert.False(t, (&SPA{Root: t.TempDir()}).Exists())
}
