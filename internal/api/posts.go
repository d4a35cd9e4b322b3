package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

var errPostNotFound = response.NewHTTPError(http.StatusNotFound, "post not found")

type postInput struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Status     string  `json:"status"`
	Visibility string  `json:"visibility"`
	Format     string  `json:"format"`
	Excerpt    string  `json:"excerpt"`
	PublishAt  *string `json:"publish_at"`
}

// post validates in. Unknown status, visibility and format values fall back
// to their defaults in the store.
func (in postInput) post() (*models.Post, error) {
	p := &models.Post{
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		Status:     in.Status,
		Visibility: in.Visibility,
		Format:     in.Format,
		Excerpt:    in.Excerpt,
	}
	if p.Title == "" {
		return nil, response.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	if in.PublishAt != nil && strings.TrimSpace(*in.PublishAt) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*in.PublishAt))
		if err != nil {
			return nil, response.NewHTTPError(http.StatusBadRequest, "invalid publish_at format, use RFC3339")
		}
		t = t.UTC()
		p.PublishAt = &t
	}
	return p, nil
}

func postErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errPostNotFound
	}
	return err
}

func (a *API) decodePost(w http.ResponseWriter, r *http.Request) (*models.Post, error) {
	var in postInput
	if err := request.DecodeJSON(w, r, &in); err != nil {
		return nil, err
	}
	return in.post()
}

func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := a.cfg.Store.ListPosts(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"posts": posts})
}

func (a *API) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "post id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.cfg.Store.GetPost(r.Context(), id)
	if err != nil {
		a.fail(w, r, postErr(err))
		return
	}
	response.OK(w, p)
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	p, err := a.decodePost(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created, err := a.cfg.Store.CreatePost(r.Context(), p)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.Created(w, created)
}

func (a *API) updatePost(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "post id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.decodePost(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p.ID = id
	updated, err := a.cfg.Store.UpdatePost(r.Context(), p)
	if err != nil {
		a.fail(w, r, postErr(err))
		return
	}
	response.OK(w, updated)
}

func (a *API) deletePost(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "post id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.cfg.Store.DeletePost(r.Context(), id); err != nil {
		a.fail(w, r, postErr(err))
		return
	}
	response.OK(w, map[string]bool{"success": true})
}
