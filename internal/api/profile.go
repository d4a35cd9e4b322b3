package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/avatar"
	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/web/auth"
	webcontext "github.com/dragonbytelabs/dz/internal/web/context"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
	"github.com/dragonbytelabs/dz/internal/web/stream"
)

// MaxDisplayNameLength is counted in characters
const MaxDisplayNameLength = 100

// Table browser paging
const (
	DefaultTableLimit = 100
	MaxTableLimit     = 1000

	// ExportFlushEvery is the number of rows sent per flush during an export
	ExportFlushEvery = 50
)

type userResponse struct {
	Success bool           `json:"success"`
	User    models.Profile `json:"user"`
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	u := webcontext.CurrentUser(r.Context())
	response.OK(w, map[string]any{"user": u.Profile()})
}

// reloadUser answers with the freshly stored profile of the current user
func (a *API) reloadUser(w http.ResponseWriter, r *http.Request, id int64) {
	u, err := a.cfg.Store.GetUserByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, userResponse{Success: true, User: u.Profile()})
}

func (a *API) updateAvatar(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	uri := strings.TrimSpace(in.AvatarURL)
	if err := avatar.Validate(uri); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	u := webcontext.CurrentUser(r.Context())
	if err := a.cfg.Store.UpdateUserAvatar(r.Context(), u.ID, uri); err != nil {
		a.fail(w, r, err)
		return
	}
	a.reloadUser(w, r, u.ID)
}

func (a *API) updateDisplayName(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DisplayName string `json:"display_name"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		response.RenderBadRequest(w, "display_name is required")
		return
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		response.RenderBadRequest(w, "display_name must be at most 100 characters")
		return
	}

	u := webcontext.CurrentUser(r.Context())
	if err := a.cfg.Store.UpdateUserDisplayName(r.Context(), u.ID, name); err != nil {
		a.fail(w, r, err)
		return
	}
	a.reloadUser(w, r, u.ID)
}

func (a *API) updateEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	email, ok := auth.NormalizeEmail(in.Email)
	if !ok {
		response.RenderBadRequest(w, "invalid email address")
		return
	}

	u := webcontext.CurrentUser(r.Context())
	err := a.cfg.Store.UpdateUserEmail(r.Context(), u.ID, email)
	if errors.Is(err, store.ErrUniqueViolation) {
		response.RenderConflict(w, "email already in use")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.reloadUser(w, r, u.ID)
}

func (a *API) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := a.cfg.Store.ListTables(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"tables": tables})
}

func (a *API) tableRows(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := min(request.QueryInt(r, "limit", DefaultTableLimit), MaxTableLimit)
	if limit == 0 {
		limit = DefaultTableLimit
	}
	offset := request.QueryInt(r, "offset", 0)

	rows, err := a.cfg.Store.TableRows(r.Context(), name, limit, offset)
	if errors.Is(err, store.ErrNotFound) {
		response.RenderNotFound(w, "table not found")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"table": name, "data": rows})
}

// exportTable streams every row of a table as newline-delimited JSON.
// Once the first row is out, failures can only be logged.
func (a *API) exportTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var s *stream.Streamer
	err := a.cfg.Store.EachTableRow(r.Context(), name, func(row map[string]any) error {
		if s == nil {
			var err error
			if s, err = stream.NewNDJSON(w, stream.WithAttachment(name+".ndjson"), stream.WithFlushEvery(ExportFlushEvery)); err != nil {
				return err
			}
		}
		return s.WriteJSON(row)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.RenderNotFound(w, "table not found")
	case err != nil && s == nil:
		a.fail(w, r, err)
	case err != nil:
		a.logger.Warn("table export interrupted",
			zap.String("table", name), zap.Int("rows", s.Count()), zap.Error(err))
	case s == nil:
		// empty table still downloads as an empty file
		if _, err := stream.NewNDJSON(w, stream.WithAttachment(name+".ndjson")); err != nil {
			a.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		s.Flush()
		a.logger.Info("table exported", zap.String("table", name), zap.Int("rows", s.Count()))
	}
}
