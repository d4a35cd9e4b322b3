// Package dzforms is the DragonByteForms plugin: a form builder with
// templates, embeddable forms and a submission inbox.
package dzforms

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dragonbytelabs/dz/internal/plugins"
	"github.com/dragonbytelabs/dz/internal/search"
	"github.com/dragonbytelabs/dz/internal/web/middleware"
)

// Plugin metadata
const (
	Name    = "dzforms"
	Version = "1.0.0"
)

// EntriesTopic is the websocket topic new submissions are published on
const EntriesTopic = "forms.entries"

// EmbedMaxAge is how long browsers may cache embed scripts, in seconds
const EmbedMaxAge = 3600

// Plugin implements plugins.Plugin
type Plugin struct{}

// New creates the plugin
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string        { return Name }
func (p *Plugin) DisplayName() string { return "DragonByteForm" }
func (p *Plugin) Description() string { return "A simple form builder plugin for Deez" }
func (p *Plugin) Version() string     { return Version }

func (p *Plugin) OnActivate(context.Context) error   { return nil }
func (p *Plugin) OnDeactivate(context.Context) error { return nil }

// Sidebar places the form list in the admin navigation
func (p *Plugin) Sidebar() plugins.Sidebar {
	return plugins.Sidebar{Icon: "📋", Title: "Forms", Link: "/_/admin/dzforms"}
}

// Commands adds form shortcuts to the command palette
func (p *Plugin) Commands() []search.Action {
	return []search.Action{
		{ID: "dzforms-new", Label: "New Form", Icon: "📋"},
		{ID: "dzforms-templates", Label: "Form Templates", Icon: "📋"},
		{ID: "dzforms-entries", Label: "Form Entries", Icon: "📥"},
	}
}

// Register mounts the admin API, the public submission endpoint and the
// embed script.
func (p *Plugin) Register(pc *plugins.Context) error {
	if pc.Router == nil || pc.Store == nil {
		return errors.New("dzforms: router and store are required")
	}
	requireAuth := pc.RequireAuth
	if requireAuth == nil {
		requireAuth = middleware.RequireAuth
	}

	h := &handlers{
		store:   pc.Store,
		events:  pc.Events,
		baseURL: pc.BaseURL,
		logger:  pc.Logger,
	}

	pc.Router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/api/dzforms/forms", h.listForms)
		r.Post("/api/dzforms/forms", h.createForm)
		r.Get("/api/dzforms/forms/{id}", h.getForm)
		r.Put("/api/dzforms/forms/{id}", h.updateForm)
		r.Delete("/api/dzforms/forms/{id}", h.deleteForm)
		r.Get("/api/dzforms/forms/{id}/embed", h.embedCode)
		r.Get("/api/dzforms/forms/{id}/preview", h.preview)

		r.Post("/api/dzforms/forms/{id}/fields", h.addField)
		r.Patch("/api/dzforms/forms/{id}/fields/{fieldID}", h.updateField)
		r.Delete("/api/dzforms/forms/{id}/fields/{fieldID}", h.deleteField)
		r.Post("/api/dzforms/forms/{id}/fields/{fieldID}/move", h.moveField)

		r.Get("/api/dzforms/forms/{id}/entries", h.listEntries)
		r.Delete("/api/dzforms/forms/{id}/entries/{entryID}", h.deleteEntry)

		r.Get("/api/dzforms/templates", h.listTemplates)
		r.Post("/api/dzforms/templates/{templateID}", h.createFromTemplate)
	})

	cors := middleware.DefaultCORSConfig()
	if len(pc.CORSOrigins) > 0 {
		cors.AllowedOrigins = pc.CORSOrigins
	}
	pc.Router.Group(func(r chi.Router) {
		r.Use(middleware.CORS(cors))

		submit := http.HandlerFunc(h.submitEntry)
		if pc.Limiter != nil {
			r.With(middleware.RateLimit(middleware.RateLimitConfig{
				Limiter: pc.Limiter,
				Scope:   "dzforms-entries",
				Logger:  pc.Logger,
			})).Post("/api/dzforms/forms/{id}/entries", submit)
		} else {
			r.Post("/api/dzforms/forms/{id}/entries", submit)
		}
		r.Options("/api/dzforms/forms/{id}/entries", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/embed/form/{id}.js", h.embedScript)
	})
	return nil
}

var (
	_ plugins.Plugin          = (*Plugin)(nil)
	_ plugins.CommandProvider = (*Plugin)(nil)
	_ plugins.SidebarProvider = (*Plugin)(nil)
)
