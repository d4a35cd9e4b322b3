package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/web/auth"
	webcontext "github.com/dragonbytelabs/dz/internal/web/context"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

// Redirect targets of the auth endpoints
const (
	LoginPath = "/login"
	AdminPath = "/_/admin"
)

var errInvalidCredentials = response.NewHTTPError(http.StatusUnauthorized, "invalid credentials")

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	defer pad(r.Context(), time.Now(), a.cfg.MinResponseTime)

	var in registerRequest
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if in.Password != in.ConfirmPassword {
		response.RenderBadRequest(w, "passwords do not match")
		return
	}
	email, ok := auth.NormalizeEmail(in.Email)
	if !ok {
		response.RenderBadRequest(w, "invalid email address")
		return
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	open, err := a.cfg.Store.GetBoolSetting(ctx, models.SettingPublicRegisterEnabled)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !open {
		fresh, err := a.cfg.Store.IsFreshInstall(ctx)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if !fresh {
			response.RenderForbidden(w, "registration is disabled")
			return
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	displayName, _, _ := strings.Cut(email, "@")
	u, err := a.cfg.Store.CreateUser(ctx, email, hash, displayName)
	if errors.Is(err, store.ErrUniqueViolation) {
		response.RenderConflict(w, "email already registered")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.cfg.Sessions.Login(ctx, u.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("user registered", zap.Int64("user_id", u.ID))
	response.Success(w, LoginPath)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	defer pad(r.Context(), time.Now(), a.cfg.MinResponseTime)

	var in loginRequest
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}

	ctx := r.Context()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	u, err := a.cfg.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		auth.BurnCompare(in.Password)
		a.fail(w, r, errInvalidCredentials)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !auth.CheckPassword(in.Password, u.PasswordHash) {
		a.fail(w, r, errInvalidCredentials)
		return
	}

	if err := a.cfg.Sessions.Login(ctx, u.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	a.logger.Info("user logged in", zap.Int64("user_id", u.ID))
	response.Success(w, AdminPath)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.cfg.Sessions.Logout(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	response.Success(w, LoginPath)
}

type meResponse struct {
	Authenticated bool                  `json:"authenticated"`
	User          *models.Profile       `json:"user"`
	Teams         []models.TeamWithRole `json:"teams"`
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	u := webcontext.CurrentUser(r.Context())
	if u == nil {
		response.OK(w, map[string]bool{"authenticated": false})
		return
	}

	teams, err := a.cfg.Store.ListTeamsForUser(r.Context(), u.ID)
	if err != nil {
		// the profile is still useful without teams
		a.logger.Warn("failed to load teams", zap.Int64("user_id", u.ID), zap.Error(err))
		teams = []models.TeamWithRole{}
	}
	profile := u.Profile()
	response.OK(w, meResponse{Authenticated: true, User: &profile, Teams: teams})
}

func (a *API) publicAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	login, err := a.cfg.Store.GetBoolSetting(ctx, models.SettingPublicLoginEnabled)
	if err != nil {
		a.logger.Warn("failed to read login setting", zap.Error(err))
	}
	register, err := a.cfg.Store.GetBoolSetting(ctx, models.SettingPublicRegisterEnabled)
	if err != nil {
		a.logger.Warn("failed to read register setting", zap.Error(err))
	}
	response.OK(w, map[string]bool{
		"login_enabled":    login,
		"register_enabled": register,
	})
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) issueToken(w http.ResponseWriter, r *http.Request) {
	if a.cfg.Tokens == nil {
		response.RenderNotFound(w, "bearer tokens are not configured")
		return
	}
	u := webcontext.CurrentUser(r.Context())
	token, exp, err := a.cfg.Tokens.Issue(u.UserHash, u.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.Created(w, tokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: exp})
}
