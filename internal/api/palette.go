package api

import (
	"net/http"

	"github.com/dragonbytelabs/dz/internal/search"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

func (a *API) palette(w http.ResponseWriter, r *http.Request) {
	var notes []*search.Note
	if a.cfg.Index != nil {
		var err error
		notes, err = a.cfg.Index.Notes(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
	}

	var extra []search.Action
	if a.cfg.Plugins != nil {
		extra = a.cfg.Plugins.Commands()
	}
	items := search.Palette(notes, r.URL.Query().Get("q"), request.QueryBool(r, "link_mode"), true, extra)
	response.OK(w, map[string]any{"items": items})
}
