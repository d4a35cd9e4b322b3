package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

var errPluginNotFound = response.NewHTTPError(http.StatusNotFound, "plugin not found")

func pluginErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errPluginNotFound
	}
	return err
}

func (a *API) listPlugins(w http.ResponseWriter, r *http.Request) {
	list, err := a.cfg.Store.ListPlugins(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"plugins": list})
}

func (a *API) listActivePlugins(w http.ResponseWriter, r *http.Request) {
	list, err := a.cfg.Store.ListActivePlugins(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"plugins": list})
}

func (a *API) getPlugin(w http.ResponseWriter, r *http.Request) {
	p, err := a.cfg.Store.GetPlugin(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.fail(w, r, pluginErr(err))
		return
	}
	response.OK(w, map[string]any{"plugin": p})
}

// setPluginStatus runs the plugin's lifecycle hook before persisting the new
// state. A failing hook leaves both the registry and the row unchanged.
func (a *API) setPluginStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IsActive *bool `json:"is_active"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if in.IsActive == nil {
		response.RenderBadRequest(w, "is_active is required")
		return
	}

	ctx := r.Context()
	name := chi.URLParam(r, "name")
	if _, err := a.cfg.Store.GetPlugin(ctx, name); err != nil {
		a.fail(w, r, pluginErr(err))
		return
	}

	active := *in.IsActive
	registered := false
	wasActive := false
	if a.cfg.Plugins != nil {
		if _, ok := a.cfg.Plugins.Get(name); ok {
			registered = true
			wasActive = a.cfg.Plugins.IsActive(name)
			var err error
			if active {
				err = a.cfg.Plugins.Activate(ctx, name)
			} else {
				err = a.cfg.Plugins.Deactivate(ctx, name)
			}
			if err != nil {
				a.logger.Error("plugin hook failed", zap.String("plugin", name), zap.Error(err))
				response.RenderStatus(w, http.StatusInternalServerError, "failed to update plugin status")
				return
			}
		}
	}

	if err := a.cfg.Store.SetPluginActive(ctx, name, active); err != nil {
		if registered {
			a.cfg.Plugins.Mark(name, wasActive)
		}
		a.fail(w, r, pluginErr(err))
		return
	}

	p, err := a.cfg.Store.GetPlugin(ctx, name)
	if err != nil {
		a.fail(w, r, pluginErr(err))
		return
	}
	response.OK(w, map[string]any{"success": true, "plugin": p})
}

type updateCheck struct {
	Plugin          *models.Plugin `json:"plugin"`
	CurrentVersion  string         `json:"current_version"`
	LatestVersion   string         `json:"latest_version"`
	UpdateAvailable bool           `json:"update_available"`
}

// checkPluginUpdates compares the recorded version with the one compiled in
func (a *API) checkPluginUpdates(w http.ResponseWriter, r *http.Request) {
	p, err := a.cfg.Store.GetPlugin(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.fail(w, r, pluginErr(err))
		return
	}

	latest := p.Version
	if a.cfg.Plugins != nil {
		if registered, ok := a.cfg.Plugins.Get(p.Name); ok && registered.Version() != "" {
			latest = registered.Version()
		}
	}
	response.OK(w, updateCheck{
		Plugin:          p,
		CurrentVersion:  p.Version,
		LatestVersion:   latest,
		UpdateAvailable: latest != p.Version,
	})
}
