// Package context carries per-request values shared by middleware and handlers.
package context

import (
	"context"

	"github.com/dragonbytelabs/dz/internal/models"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	currentUserKey
	authMethodKey
)

// Authentication methods recorded for the current user
const (
	AuthSession = "session"
	AuthBearer  = "bearer"
)

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// SetRequestID adds the request ID to the context
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// CurrentUser returns the authenticated user, or nil
func CurrentUser(ctx context.Context) *models.User {
	if u, ok := ctx.Value(currentUserKey).(*models.User); ok {
		return u
	}
	return nil
}

// SetCurrentUser records the authenticated user and how it was authenticated
func SetCurrentUser(ctx context.Context, u *models.User, method string) context.Context {
	ctx = context.WithValue(ctx, currentUserKey, u)
	return context.WithValue(ctx, authMethodKey, method)
}

// AuthMethod reports how the current user authenticated
func AuthMethod(ctx context.Context) string {
	m, _ := ctx.Value(authMethodKey).(string)
	return m
}
