package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/store"
	webcontext "github.com/dragonbytelabs/dz/internal/web/context"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

var (
	errTeamNotFound = response.NewHTTPError(http.StatusNotFound, "team not found")
	errNotTeamOwner = response.NewHTTPError(http.StatusForbidden, "only team owners can modify the team")
)

type teamResponse struct {
	*models.Team
	Role    string              `json:"role"`
	Members []models.TeamMember `json:"members"`
}

func teamErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errTeamNotFound
	}
	return err
}

// membership resolves the {id} parameter and the caller's role in that team.
// Non-members get a 404 so team ids are not disclosed.
func (a *API) membership(r *http.Request) (int64, string, error) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "team id")
	if err != nil {
		return 0, "", err
	}
	u := webcontext.CurrentUser(r.Context())
	role, err := a.cfg.Store.TeamRole(r.Context(), id, u.ID)
	if err != nil {
		return 0, "", teamErr(err)
	}
	return id, role, nil
}

func (a *API) ownedTeam(r *http.Request) (int64, error) {
	id, role, err := a.membership(r)
	if err != nil {
		return 0, err
	}
	if role != models.RoleOwner {
		return 0, errNotTeamOwner
	}
	return id, nil
}

func (a *API) listTeams(w http.ResponseWriter, r *http.Request) {
	u := webcontext.CurrentUser(r.Context())
	teams, err := a.cfg.Store.ListTeamsForUser(r.Context(), u.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"teams": teams})
}

func (a *API) createTeam(w http.ResponseWriter, r *http.Request) {
	name, desc, err := decodeNamed(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u := webcontext.CurrentUser(r.Context())
	t, err := a.cfg.Store.CreateTeam(r.Context(), u.ID, name, desc)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("team created", zap.Int64("team_id", t.ID), zap.String("owner", u.UserHash))
	response.Created(w, teamResponse{Team: t, Role: models.RoleOwner, Members: []models.TeamMember{}})
}

func (a *API) getTeam(w http.ResponseWriter, r *http.Request) {
	id, role, err := a.membership(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.cfg.Store.GetTeam(r.Context(), id)
	if err != nil {
		a.fail(w, r, teamErr(err))
		return
	}
	members, err := a.cfg.Store.ListTeamMembers(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, teamResponse{Team: t, Role: role, Members: members})
}

func (a *API) updateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := a.ownedTeam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	name, desc, err := decodeNamed(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	t, err := a.cfg.Store.UpdateTeam(r.Context(), id, name, desc)
	if err != nil {
		a.fail(w, r, teamErr(err))
		return
	}
	response.OK(w, t)
}

func (a *API) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := a.ownedTeam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.cfg.Store.DeleteTeam(r.Context(), id); err != nil {
		a.fail(w, r, teamErr(err))
		return
	}
	a.logger.Info("team deleted", zap.Int64("team_id", id))
	response.OK(w, map[string]bool{"success": true})
}

// setTeamMember adds a user, addressed by their public id, or changes their role
func (a *API) setTeamMember(w http.ResponseWriter, r *http.Request) {
	id, err := a.ownedTeam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = models.RoleMember
	}
	if !models.ValidRole(role) {
		response.RenderBadRequest(w, "role must be one of owner, admin, member")
		return
	}

	member, err := a.cfg.Store.GetUserByHash(r.Context(), strings.TrimSpace(in.UserID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = response.NewHTTPError(http.StatusNotFound, "user not found")
		}
		a.fail(w, r, err)
		return
	}
	if err := a.cfg.Store.SetTeamMember(r.Context(), id, member.ID, role); err != nil {
		a.fail(w, r, err)
		return
	}

	members, err := a.cfg.Store.ListTeamMembers(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"members": members})
}

func (a *API) removeTeamMember(w http.ResponseWriter, r *http.Request) {
	id, err := a.ownedTeam(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	member, err := a.cfg.Store.GetUserByHash(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = response.NewHTTPError(http.StatusNotFound, "user not found")
		}
		a.fail(w, r, err)
		return
	}
	u := webcontext.CurrentUser(r.Context())
	if member.ID == u.ID {
		response.RenderBadRequest(w, "owners cannot remove themselves")
		return
	}
	if err := a.cfg.Store.RemoveTeamMember(r.Context(), id, member.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = response.NewHTTPError(http.StatusNotFound, "member not found")
		}
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]bool{"success": true})
}
