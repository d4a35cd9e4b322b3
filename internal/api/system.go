package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dragonbytelabs/dz/internal/web/response"
)

// HealthTimeout bounds the database ping behind /api/health
const HealthTimeout = 2 * time.Second

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"app": a.cfg.AppName, "version": a.cfg.Version})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthTimeout)
	defer cancel()

	if err := a.cfg.Store.Ping(ctx); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "degraded",
			"details": map[string]string{"database": err.Error()},
		})
		return
	}
	response.OK(w, map[string]string{"status": "ok"})
}
