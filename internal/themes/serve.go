package themes

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	webcontext "github.com/dragonbytelabs/dz/internal/web/context"
	"github.com/dragonbytelabs/dz/internal/web/response"
	"github.com/dragonbytelabs/dz/internal/web/static"
)

// ActiveSource reports the active theme name; "" means none
type ActiveSource interface {
	GetActiveTheme(ctx context.Context) (string, error)
}

// AssetMaxAge is the browser cache lifetime of theme assets in seconds
const AssetMaxAge = 300

var siteRewrites = map[string]string{
	"/login":    "login.html",
	"/register": "register.html",
}

// Server serves the active theme at the site root, falling back to another
// handler when no theme is active.
type Server struct {
	themes   *Manager
	active   ActiveSource
	fallback http.Handler
	logger   *zap.Logger
}

// NewServer creates a Server. fallback handles requests while no theme is
// active, normally the admin SPA.
func NewServer(themes *Manager, active ActiveSource, fallback http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}
	return &Server{themes: themes, active: active, fallback: fallback, logger: logger}
}

func (s *Server) site(dir string, inject bool) *static.SPA {
	spa := &static.SPA{Root: dir, Rewrites: siteRewrites, MaxAge: AssetMaxAge}
	if inject {
		spa.Inject = ToolbarFor
	}
	return spa
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, err := s.active.GetActiveTheme(r.Context())
	if err != nil {
		s.logger.Error("failed to read active theme", zap.Error(err))
		s.fallback.ServeHTTP(w, r)
		return
	}
	if name == "" {
		s.fallback.ServeHTTP(w, r)
		return
	}
	if !s.themes.Exists(name) {
		s.logger.Warn("active theme is not installed", zap.String("theme", name))
		s.fallback.ServeHTTP(w, r)
		return
	}

	dir, _ := s.themes.Dir(name)
	s.site(dir, true).ServeHTTP(w, r)
}

// Preview serves any installed theme under /_/preview/{name}/ without
// activating it. Mount it on a chi route with a trailing wildcard.
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !ValidName(name) {
		response.RenderBadRequest(w, "invalid theme name")
		return
	}
	if !s.themes.Exists(name) {
		response.RenderNotFound(w, "theme not found")
		return
	}

	dir, _ := s.themes.Dir(name)
	prefix := strings.TrimSuffix(r.URL.Path, chi.URLParam(r, "*"))
	http.StripPrefix(strings.TrimSuffix(prefix, "/"), s.site(dir, false)).ServeHTTP(w, r)
}

// ToolbarFor returns the admin toolbar for authenticated visitors
func ToolbarFor(r *http.Request) (static.Injection, bool) {
	if webcontext.CurrentUser(r.Context()) == nil {
		return static.Injection{}, false
	}
	return static.Injection{Head: toolbarCSS, Body: toolbarHTML}, true
}
