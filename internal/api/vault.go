package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/vault"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

func vaultErr(err error) error {
	switch {
	case errors.Is(err, vault.ErrInvalidPath):
		return response.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, vault.ErrNotFound):
		return response.NewHTTPError(http.StatusNotFound, "file not found")
	case errors.Is(err, vault.ErrExists):
		return response.NewHTTPError(http.StatusConflict, "already exists")
	case errors.Is(err, vault.ErrConflict):
		return response.NewHTTPError(http.StatusConflict, "file changed since it was read")
	case errors.Is(err, vault.ErrIsDir), errors.Is(err, vault.ErrNotDir):
		return response.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

var okBody = map[string]bool{"ok": true}

func (a *API) notes(w http.ResponseWriter) (*vault.Vault, bool) {
	if a.cfg.Vault == nil {
		response.RenderNotFound(w, "vault is not configured")
		return nil, false
	}
	return a.cfg.Vault, true
}

// changed drops the palette index after a write
func (a *API) changed(op, path string) {
	if a.cfg.Index != nil {
		a.cfg.Index.Invalidate()
	}
	a.logger.Debug("vault changed", zap.String("op", op), zap.String("path", path))
}

func (a *API) listFiles(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	files, err := v.ListMarkdown(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, files)
}

func (a *API) tree(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	entries, err := v.ListEntries(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, entries)
}

func (a *API) readFile(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	res, err := v.ReadFile(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		a.fail(w, r, vaultErr(err))
		return
	}
	response.OK(w, res)
}

func (a *API) createFile(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := v.CreateFile(r.Context(), in.Path, in.Content)
	if err != nil {
		a.fail(w, r, vaultErr(err))
		return
	}
	a.changed("create", res.Path)
	response.OK(w, res)
}

func (a *API) writeFile(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	var in vault.WriteRequest
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := v.WriteFile(r.Context(), r.URL.Query().Get("path"), in)
	if err != nil {
		a.fail(w, r, vaultErr(err))
		return
	}
	a.changed("write", res.Path)
	response.OK(w, res)
}

func (a *API) deleteFile(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	p := r.URL.Query().Get("path")
	if err := v.DeleteFile(r.Context(), p); err != nil {
		a.fail(w, r, vaultErr(err))
		return
	}
	a.changed("delete", p)
	response.OK(w, okBody)
}

func (a *API) createFolder(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	var in struct {
		Path string `json:"path"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := v.CreateFolder(r.Context(), in.Path); err != nil {
		a.fail(w, r, vaultErr(err))
		return
	}
	a.changed("mkdir", in.Path)
	response.OK(w, okBody)
}

func (a *API) deleteFolder(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	p := r.URL.Query().Get("path")
	if err := v.DeleteFolder(r.Context(), p); err != nil {
		a.fail(w, r, vaultErr(err))
		return
	}
	a.changed("rmdir", p)
	response.OK(w, okBody)
}

func (a *API) rename(w http.ResponseWriter, r *http.Request) {
	v, found := a.notes(w)
	if !found {
		return
	}
	var in struct {
		OldPath string `json:"oldPath"`
		NewPath string `json:"newPath"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := v.Rename(r.Context(), in.OldPath, in.NewPath); err != nil {
		a.fail(w, r, vaultErr(err))
		return
	}
	a.changed("rename", in.NewPath)
	response.OK(w, okBody)
}
