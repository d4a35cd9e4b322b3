package response

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HTTPError is an error that knows its status code. Handlers return it from
// service code and RenderError unwraps it.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Details    map[string]any
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       errorCodeFromStatus(statusCode),
	}
}

// Errorf creates an HTTP error with a formatted message
func Errorf(statusCode int, format string, args ...any) *HTTPError {
	return NewHTTPError(statusCode, fmt.Sprintf(format, args...))
}

// WithDetails adds details to the error
func (e *HTTPError) WithDetails(details map[string]any) *HTTPError {
	e.Details = details
	return e
}

// RenderError renders err. An *HTTPError anywhere in the chain supplies the
// status; anything else becomes a 500 with a generic message.
func RenderError(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	JSON(w, httpErr.StatusCode, &ErrorResponse{
		Error:   "error",
		Message: httpErr.Message,
		Code:    httpErr.Code,
		Details: httpErr.Details,
	})
}

// RenderStatus renders a plain error envelope for status
func RenderStatus(w http.ResponseWriter, status int, message string) {
	RenderError(w, NewHTTPError(status, message))
}

// RenderBadRequest renders a 400 Bad Request error
func RenderBadRequest(w http.ResponseWriter, message string) {
	RenderStatus(w, http.StatusBadRequest, message)
}

// RenderUnauthorized renders a 401 Unauthorized error
func RenderUnauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "authentication required"
	}
	RenderStatus(w, http.StatusUnauthorized, message)
}

// RenderForbidden renders a 403 Forbidden error
func RenderForbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "access denied"
	}
	RenderStatus(w, http.StatusForbidden, message)
}

// RenderNotFound renders a 404 Not Found error
func RenderNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "not found"
	}
	RenderStatus(w, http.StatusNotFound, message)
}

// RenderConflict renders a 409 Conflict error
func RenderConflict(w http.ResponseWriter, message string) {
	RenderStatus(w, http.StatusConflict, message)
}

// RenderTooManyRequests renders a 429 with Retry-After in seconds
func RenderTooManyRequests(w http.ResponseWriter, retryAfter int) {
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	RenderStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// RenderInternalError renders a 500 without exposing err
func RenderInternalError(w http.ResponseWriter) {
	RenderStatus(w, http.StatusInternalServerError, "internal server error")
}

func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		return "error"
	}
}
