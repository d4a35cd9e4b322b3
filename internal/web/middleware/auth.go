package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/web/auth"
	webcontext "github.com/dragonbytelabs/dz/internal/web/context"
	"github.com/dragonbytelabs/dz/internal/web/response"
	"github.com/dragonbytelabs/dz/internal/web/session"
)

// UserLookup resolves session and token subjects to users
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByHash(ctx context.Context, userHash string) (*models.User, error)
}

// Authenticator attaches the current user to the request context
type Authenticator struct {
	users  UserLookup
	tokens *auth.TokenService
	logger *zap.Logger
}

// NewAuthenticator creates an Authenticator. tokens may be nil, which disables
// bearer authentication.
func NewAuthenticator(users UserLookup, tokens *auth.TokenService, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{users: users, tokens: tokens, logger: logger}
}

// Authenticate resolves the user from a bearer token or the session. It never
// rejects anonymous requests; the Require guards do that.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if raw, ok := bearerToken(r); ok {
			if a.tokens == nil {
				response.RenderUnauthorized(w, "bearer tokens are disabled")
				return
			}
			claims, err := a.tokens.Verify(raw)
			if err != nil {
				response.RenderUnauthorized(w, "invalid token")
				return
			}
			u, err := a.users.GetUserByHash(ctx, claims.Subject)
			if errors.Is(err, store.ErrNotFound) {
				response.RenderUnauthorized(w, "invalid token")
				return
			}
			if err != nil {
				a.logger.Error("failed to load token user", zap.Error(err))
				response.RenderInternalError(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(webcontext.SetCurrentUser(ctx, u, webcontext.AuthBearer)))
			return
		}

		if sess := session.FromContext(ctx); sess != nil && sess.Authenticated() {
			u, err := a.users.GetUserByID(ctx, sess.UserID)
			switch {
			case err == nil:
				ctx = webcontext.SetCurrentUser(ctx, u, webcontext.AuthSession)
			case errors.Is(err, store.ErrNotFound):
				// the user was removed; drop the stale login
				sess.ClearUser()
			default:
				a.logger.Error("failed to load session user", zap.Error(err))
				response.RenderInternalError(w)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth answers anonymous API requests with 401 JSON
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if webcontext.CurrentUser(r.Context()) == nil {
			response.RenderUnauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuthPage redirects anonymous page requests to loginPath
func RequireAuthPage(loginPath string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if webcontext.CurrentUser(r.Context()) == nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGuest redirects authenticated requests to home
func RequireGuest(home string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if webcontext.CurrentUser(r.Context()) != nil {
				http.Redirect(w, r, home, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
