// Package cache implements HTTP validators for generated responses.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// ETag returns a strong validator for content
func ETag(content []byte) string {
	sum := sha256.Sum256(content)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// Matches reports whether an If-None-Match header value matches etag.
// Comparison is weak, as RFC 9110 requires for If-None-Match.
func Matches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}

// ServeBytes writes content with an ETag and Cache-Control max-age, answering
// 304 when the client already holds it.
func ServeBytes(w http.ResponseWriter, r *http.Request, content []byte, contentType string, maxAge int) {
	etag := ETag(content)
	h := w.Header()
	h.Set("ETag", etag)
	if maxAge > 0 {
		h.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	} else {
		h.Set("Cache-Control", "no-cache")
	}

	if Matches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", contentType)
	h.Set("Content-Length", fmt.Sprint(len(content)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(content)
	}
}
