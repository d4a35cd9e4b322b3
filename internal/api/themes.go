package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/themes"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

func themeErr(err error) error {
	switch {
	case errors.Is(err, themes.ErrExists):
		return response.NewHTTPError(http.StatusConflict, "theme already exists")
	case errors.Is(err, themes.ErrInvalidName):
		return response.NewHTTPError(http.StatusBadRequest,
			"invalid theme name. only alphanumeric characters, hyphens, and underscores are allowed")
	case errors.Is(err, themes.ErrNotZip):
		return response.NewHTTPError(http.StatusBadRequest, themes.ErrNotZip.Error())
	case errors.Is(err, themes.ErrMissingIndex):
		return response.NewHTTPError(http.StatusBadRequest, themes.ErrMissingIndex.Error())
	case errors.Is(err, themes.ErrFileTooBig):
		return response.NewHTTPError(http.StatusRequestEntityTooLarge, themes.ErrFileTooBig.Error())
	case errors.Is(err, themes.ErrNotFound):
		return response.NewHTTPError(http.StatusNotFound, "theme not found")
	}
	return err
}

func (a *API) themeManager(w http.ResponseWriter) (*themes.Manager, bool) {
	if a.cfg.Themes == nil {
		response.RenderNotFound(w, "themes are not configured")
		return nil, false
	}
	return a.cfg.Themes, true
}

func (a *API) listThemes(w http.ResponseWriter, r *http.Request) {
	m, ok := a.themeManager(w)
	if !ok {
		return
	}
	active, err := a.cfg.Store.GetActiveTheme(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := m.List(active)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"themes": list})
}

func (a *API) activateTheme(w http.ResponseWriter, r *http.Request) {
	m, ok := a.themeManager(w)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if !m.Exists(name) {
		a.fail(w, r, themeErr(themes.ErrNotFound))
		return
	}
	if err := a.cfg.Store.SetActiveTheme(r.Context(), name); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("theme activated", zap.String("theme", name))
	response.OK(w, map[string]any{"success": true, "message": "theme activated", "theme": name})
}

func (a *API) deactivateTheme(w http.ResponseWriter, r *http.Request) {
	if err := a.cfg.Store.SetActiveTheme(r.Context(), ""); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("theme deactivated")
	response.OK(w, map[string]any{"success": true, "message": "theme deactivated"})
}

func (a *API) uploadTheme(w http.ResponseWriter, r *http.Request) {
	m, ok := a.themeManager(w)
	if !ok {
		return
	}
	file, err := request.FormFile(w, r, "file", a.cfg.ThemeLimits.MaxUploadSize)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer file.Close()

	name, err := themes.NameFromFilename(file.Filename)
	if err != nil {
		a.fail(w, r, themeErr(err))
		return
	}
	head, err := file.Sniff()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := themes.CheckZip(file.ContentType, head); err != nil {
		a.fail(w, r, themeErr(err))
		return
	}

	limits := themes.Limits{MaxFileSize: a.cfg.ThemeLimits.MaxFileSize}
	if err := m.Install(name, file.File, file.Size, limits); err != nil {
		a.fail(w, r, themeErr(err))
		return
	}
	a.logger.Info("theme uploaded", zap.String("theme", name), zap.Int64("size", file.Size))
	response.OK(w, map[string]any{"success": true, "message": "theme uploaded successfully", "theme": name})
}
