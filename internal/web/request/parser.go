// Package request decodes request bodies and multipart uploads.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dragonbytelabs/dz/internal/web/response"
)

// DefaultMaxBodySize bounds JSON bodies
const DefaultMaxBodySize = 1 << 20

// DecodeJSON decodes a single JSON value from the body into target. Failures
// come back as *response.HTTPError values ready to render.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, DefaultMaxBodySize)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return response.NewHTTPError(http.StatusBadRequest, "request body is empty")
		case errors.As(err, &maxErr):
			return response.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
		default:
			return response.NewHTTPError(http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
	}
	if dec.More() {
		return response.NewHTTPError(http.StatusBadRequest, "request body contains multiple JSON values")
	}
	return nil
}

// QueryInt reads a non-negative integer query parameter, falling back to def
// when it is missing or malformed
func QueryInt(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// QueryBool reads a boolean query parameter ("1", "true", "yes")
func QueryBool(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// PathInt64 parses a route parameter as a positive id
func PathInt64(value, name string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, response.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}
