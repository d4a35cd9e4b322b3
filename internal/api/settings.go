package api

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

func (a *API) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.cfg.Store.Settings(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, settings)
}

// settingValue accepts strings and booleans, storing booleans as "true"/"false"
func settingValue(key string, v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	}
	return "", response.Errorf(http.StatusBadRequest, "invalid value for %s", key)
}

// updateSettings validates every key before writing any of them
func (a *API) updateSettings(w http.ResponseWriter, r *http.Request) {
	var in map[string]any
	if err := request.DecodeJSON(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}

	values := make(map[string]string, len(in))
	for key, v := range in {
		if !models.EditableSetting(key) {
			a.fail(w, r, response.Errorf(http.StatusBadRequest, "unknown setting: %s", key))
			return
		}
		s, err := settingValue(key, v)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		values[key] = s
	}

	for key, v := range values {
		if err := a.cfg.Store.SetSetting(r.Context(), key, v); err != nil {
			a.fail(w, r, fmt.Errorf("failed to save setting %s: %w", key, err))
			return
		}
		a.logger.Info("setting updated", zap.String("key", key))
	}

	settings, err := a.cfg.Store.Settings(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, settings)
}
