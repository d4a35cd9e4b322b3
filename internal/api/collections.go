package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dragonbytelabs/dz/internal/store"
	webcontext "github.com/dragonbytelabs/dz/internal/web/context"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

var errCollectionNotFound = response.NewHTTPError(http.StatusNotFound, "collection not found")

type collectionInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// decodeNamed reads a {name, description} body, trimming both
func decodeNamed(w http.ResponseWriter, r *http.Request) (string, *string, error) {
	var in collectionInput
	if err := request.DecodeJSON(w, r, &in); err != nil {
		return "", nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, response.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	return name, trimmedOrNil(in.Description), nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func collectionErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errCollectionNotFound
	case errors.Is(err, store.ErrUniqueViolation):
		return response.NewHTTPError(http.StatusConflict, "collection with this name already exists")
	}
	return err
}

func (a *API) listCollections(w http.ResponseWriter, r *http.Request) {
	u := webcontext.CurrentUser(r.Context())
	collections, err := a.cfg.Store.ListCollections(r.Context(), u.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"collections": collections})
}

func (a *API) createCollection(w http.ResponseWriter, r *http.Request) {
	name, desc, err := decodeNamed(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u := webcontext.CurrentUser(r.Context())
	c, err := a.cfg.Store.CreateCollection(r.Context(), u.ID, name, desc)
	if err != nil {
		a.fail(w, r, collectionErr(err))
		return
	}
	response.Created(w, c)
}

func (a *API) getCollection(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "collection id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u := webcontext.CurrentUser(r.Context())
	c, err := a.cfg.Store.GetCollection(r.Context(), u.ID, id)
	if err != nil {
		a.fail(w, r, collectionErr(err))
		return
	}
	response.OK(w, c)
}

func (a *API) updateCollection(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "collection id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name, desc, err := decodeNamed(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u := webcontext.CurrentUser(r.Context())
	c, err := a.cfg.Store.UpdateCollection(r.Context(), u.ID, id, name, desc)
	if err != nil {
		a.fail(w, r, collectionErr(err))
		return
	}
	response.OK(w, c)
}

func (a *API) deleteCollection(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "collection id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u := webcontext.CurrentUser(r.Context())
	if err := a.cfg.Store.DeleteCollection(r.Context(), u.ID, id); err != nil {
		a.fail(w, r, collectionErr(err))
		return
	}
	response.OK(w, map[string]bool{"success": true})
}
