// Package plugins defines the extension interface and the registry that owns
// plugin lifecycle.
package plugins

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/search"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/web/ratelimit"
)

// Plugin extends the server with routes and lifecycle hooks.
type Plugin interface {
	// Name is the unique identifier stored in the plugins table
	Name() string
	DisplayName() string
	Description() string
	Version() string

	// Register mounts routes and resources. It runs once at startup whether
	// or not the plugin is active; the registry hides routes of inactive
	// plugins.
	Register(pc *Context) error

	OnActivate(ctx context.Context) error
	OnDeactivate(ctx context.Context) error
}

// CommandProvider is implemented by plugins that add command palette actions
type CommandProvider interface {
	Commands() []search.Action
}

// Sidebar describes the admin navigation entry of a plugin
type Sidebar struct {
	Icon  string
	Title string
	Link  string
}

// SidebarProvider is implemented by plugins with an admin page
type SidebarProvider interface {
	Sidebar() Sidebar
}

// Publisher broadcasts live events
type Publisher interface {
	Publish(topic string, data any)
}

// Context hands core services to a plugin during Register.
type Context struct {
	// Router is scoped to the plugin: requests hit its routes only while the
	// plugin is active.
	Router      chi.Router
	Store       *store.DB
	RequireAuth func(http.Handler) http.Handler
	Events      Publisher
	// Limiter throttles public endpoints. It may be nil.
	Limiter ratelimit.Limiter
	// CORSOrigins lists origins allowed to call public endpoints
	CORSOrigins []string
	BaseURL     string
	Logger      *zap.Logger
}

// Info is the JSON view of a registered plugin
type Info struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Active      bool   `json:"active"`
}

// Model converts p into the row stored in the plugins table
func Model(p Plugin) *models.Plugin {
	m := &models.Plugin{
		Name:        p.Name(),
		DisplayName: p.DisplayName(),
		Version:     p.Version(),
	}
	if d := p.Description(); d != "" {
		m.Description = &d
	}
	if m.DisplayName == "" {
		m.DisplayName = m.Name
	}
	if m.Version == "" {
		m.Version = models.DefaultPluginVersion
	}
	if sp, ok := p.(SidebarProvider); ok {
		sb := sp.Sidebar()
		m.SidebarIcon = optional(sb.Icon)
		m.SidebarTitle = optional(sb.Title)
		m.SidebarLink = optional(sb.Link)
	}
	return m
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
