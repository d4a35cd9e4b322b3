package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRenderError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "http error",
			err:        NewHTTPError(http.StatusConflict, "collection with this name already exists"),
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
			wantMsg:    "collection with this name already exists",
		},
		{
			name:       "wrapped http error",
			err:        fmt.Errorf("create: %w", Errorf(http.StatusBadRequest, "name is %s", "required")),
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
			wantMsg:    "name is required",
		},
		{
			name:       "plain error is hidden",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RenderError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			body := decodeError(t, rec)
			assert.Equal(t, "error", body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestRenderHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderUnauthorized(rec, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", decodeError(t, rec).Message)

	rec = httptest.NewRecorder()
	RenderTooManyRequests(rec, 0)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	RenderNotFound(rec, "")
	assert.Equal(t, "not found", decodeError(t, rec).Message)
}

func TestHTTPErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, NewHTTPError(http.StatusServiceUnavailable, "degraded").
		WithDetails(map[string]any{"database": "down"}))

	body := decodeError(t, rec)
	assert.Equal(t, "service_unavailable", body.Code)
	assert.Equal(t, "down", body.Details["database"])
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, "/login")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"redirect":"/login"}`, rec.Body.String())
}
