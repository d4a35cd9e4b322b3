package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestETagStable(t *testing.T) {
	a := ETag([]byte("hello"))
	assert.Equal(t, a, ETag([]byte("hello")))
	assert.NotEqual(t, a, ETag([]byte("hello!")))
	assert.Len(t, a, 34)
}

func TestMatches(t *testing.T) {
	etag := `"abc"`
	tests := []struct {
		header string
		want   bool
	}{
		{header: "", want: false},
		{header: "*", want: true},
		{header: `"abc"`, want: true},
		{header: `W/"abc"`, want: true},
		{header: `"x", "abc"`, want: true},
		{header: `"x"`, want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(tt.header, etag), tt.header)
	}
}

func TestServeBytes(t *testing.T) {
	body := []byte("console.log(1)")

	rec := httptest.NewRecorder()
	ServeBytes(rec, httptest.NewRequest(http.MethodGet, "/x.js", nil), body, "application/javascript", 3600)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "application/javascript", rec.Header().Get("Content-Type"))
	assert.Equal(t, string(body), rec.Body.String())
	etag := rec.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/x.js", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	ServeBytes(rec, req, body, "application/javascript", 3600)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	ServeBytes(rec, httptest.NewRequest(http.MethodHead, "/x.js", nil), body, "application/javascript", 0)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Body.String())
}
