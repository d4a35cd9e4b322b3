// Package api implements the REST endpoints behind the admin application.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/plugins"
	"github.com/dragonbytelabs/dz/internal/search"
	"github.com/dragonbytelabs/dz/internal/storage"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/themes"
	"github.com/dragonbytelabs/dz/internal/vault"
	"github.com/dragonbytelabs/dz/internal/web/auth"
	"github.com/dragonbytelabs/dz/internal/web/middleware"
	"github.com/dragonbytelabs/dz/internal/web/ratelimit"
	"github.com/dragonbytelabs/dz/internal/web/response"
	"github.com/dragonbytelabs/dz/internal/web/session"
)

// Config wires the API to its services. Optional members may be nil.
type Config struct {
	AppName string
	Version string

	Store    *store.DB
	Sessions *session.Manager
	// Tokens enables POST /api/tokens
	Tokens *auth.TokenService
	Media  storage.Store
	Themes *themes.Manager
	Vault  *vault.Vault
	Index  *search.Index

	Plugins *plugins.Registry
	// Live serves GET /api/ws
	Live http.Handler
	// LoginLimiter throttles login attempts per client IP
	LoginLimiter ratelimit.Limiter

	// MinResponseTime pads login and register responses
	MinResponseTime time.Duration
	MaxMediaSize    int64
	ThemeLimits     ThemeLimits

	Logger *zap.Logger
}

// ThemeLimits bound theme archive uploads
type ThemeLimits struct {
	MaxUploadSize int64
	MaxFileSize   int64
}

// API serves the /api routes
type API struct {
	cfg    Config
	logger *zap.Logger
}

// New creates the API. Store and Sessions are required.
func New(cfg Config) (*API, error) {
	if cfg.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("api: session manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.AppName == "" {
		cfg.AppName = "dz"
	}
	if cfg.MaxMediaSize <= 0 {
		cfg.MaxMediaSize = 10 << 20
	}
	if cfg.ThemeLimits.MaxUploadSize <= 0 {
		cfg.ThemeLimits.MaxUploadSize = themes.MaxUploadSize
	}
	if cfg.ThemeLimits.MaxFileSize <= 0 {
		cfg.ThemeLimits.MaxFileSize = themes.MaxFileSize
	}
	return &API{cfg: cfg, logger: cfg.Logger.Named("api")}, nil
}

// Routes mounts every endpoint on r. The session and authenticator
// middleware must already run on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/info", a.info)
		r.Get("/health", a.health)
		r.Get("/public-auth", a.publicAuth)
		r.Get("/me", a.me)

		r.Group(func(r chi.Router) {
			if a.cfg.LoginLimiter != nil {
				r.Use(middleware.RateLimit(middleware.RateLimitConfig{
					Limiter: a.cfg.LoginLimiter,
					Scope:   "login",
					Logger:  a.logger,
				}))
			}
			r.Post("/login", a.login)
		})
		r.Post("/register", a.register)
		r.Post("/logout", a.logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Post("/tokens", a.issueToken)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/tables", a.listTables)
				r.Get("/table/{name}", a.tableRows)
				r.Get("/table/{name}/export", a.exportTable)

				r.Get("/user/profile", a.profile)
				r.Put("/user/avatar", a.updateAvatar)
				r.Put("/user/display-name", a.updateDisplayName)
				r.Put("/user/email", a.updateEmail)
			})

			r.Route("/collections", func(r chi.Router) {
				r.Get("/", a.listCollections)
				r.Post("/", a.createCollection)
				r.Get("/{id}", a.getCollection)
				r.Put("/{id}", a.updateCollection)
				r.Delete("/{id}", a.deleteCollection)
			})

			r.Route("/media", func(r chi.Router) {
				r.Get("/", a.listMedia)
				r.Post("/upload", a.uploadMedia)
				r.Get("/{id}", a.getMedia)
				r.Delete("/{id}", a.deleteMedia)
			})

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", a.listPosts)
				r.Post("/", a.createPost)
				r.Get("/{id}", a.getPost)
				r.Put("/{id}", a.updatePost)
				r.Delete("/{id}", a.deletePost)
			})

			r.Route("/themes", func(r chi.Router) {
				r.Get("/", a.listThemes)
				r.Post("/upload", a.uploadTheme)
				r.Post("/deactivate", a.deactivateTheme)
				r.Post("/{name}/activate", a.activateTheme)
			})

			r.Route("/plugins", func(r chi.Router) {
				r.Get("/", a.listPlugins)
				r.Get("/active", a.listActivePlugins)
				r.Get("/{name}", a.getPlugin)
				r.Put("/{name}/status", a.setPluginStatus)
				r.Get("/{name}/check-updates", a.checkPluginUpdates)
			})

			r.Get("/files", a.listFiles)
			r.Get("/tree", a.tree)
			r.Get("/file", a.readFile)
			r.Post("/file", a.createFile)
			r.Put("/file", a.writeFile)
			r.Delete("/file", a.deleteFile)
			r.Post("/folder", a.createFolder)
			r.Delete("/folder", a.deleteFolder)
			r.Post("/rename", a.rename)
			r.Get("/palette", a.palette)

			r.Get("/settings", a.getSettings)
			r.Put("/settings", a.updateSettings)

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", a.listTeams)
				r.Post("/", a.createTeam)
				r.Get("/{id}", a.getTeam)
				r.Put("/{id}", a.updateTeam)
				r.Delete("/{id}", a.deleteTeam)
				r.Post("/{id}/members", a.setTeamMember)
				r.Delete("/{id}/members/{userID}", a.removeTeamMember)
			})

			if a.cfg.Live != nil {
				r.Get("/ws", a.cfg.Live.ServeHTTP)
			}
		})
	})

	if a.cfg.Media != nil {
		r.Get("/uploads/*", a.serveUpload)
	}
}

// fail renders err. HTTP errors pass through, store sentinels map to their
// statuses and anything else is logged as a 500.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *response.HTTPError
	switch {
	case errors.As(err, &httpErr):
		response.RenderError(w, err)
	case errors.Is(err, store.ErrNotFound):
		response.RenderNotFound(w, "")
	case errors.Is(err, store.ErrUniqueViolation):
		response.RenderConflict(w, "resource already exists")
	case errors.Is(err, context.Canceled):
		// the client went away; nothing useful can be written
	default:
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		response.RenderInternalError(w)
	}
}

// pad sleeps until min has passed since start or ctx is done
func pad(ctx context.Context, start time.Time, min time.Duration) {
	d := min - time.Since(start)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
