package dzforms

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/plugins"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/web/cache"
	"github.com/dragonbytelabs/dz/internal/web/middleware"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

type handlers struct {
	store   *store.DB
	events  plugins.Publisher
	baseURL string
	logger  *zap.Logger
}

// formInput accepts fields either as a JSON array or as a string holding one
type formInput struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Fields      json.RawMessage `json:"fields"`
}

func (in formInput) normalize() (string, *string, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, "", response.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	var desc *string
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			desc = &d
		}
	}

	raw := bytes.TrimSpace(in.Fields)
	var fieldsJSON string
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &fieldsJSON); err != nil {
			return "", nil, "", response.NewHTTPError(http.StatusBadRequest, "invalid fields")
		}
	default:
		fieldsJSON = string(raw)
	}

	fields, err := ParseFields(fieldsJSON)
	if err != nil {
		return "", nil, "", err
	}
	encoded, err := EncodeFields(fields)
	if err != nil {
		return "", nil, "", err
	}
	return name, desc, encoded, nil
}

// fail renders err, mapping domain errors to statuses
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	var httpErr *response.HTTPError
	switch {
	case errors.As(err, &httpErr):
		response.RenderError(w, err)
	case errors.As(err, &verr):
		details := make(map[string]any, len(verr.Fields))
		for k, v := range verr.Fields {
			details[k] = v
		}
		response.RenderError(w, response.NewHTTPError(http.StatusBadRequest, "invalid submission").WithDetails(details))
	case errors.Is(err, ErrInvalidFields):
		response.RenderBadRequest(w, err.Error())
	case errors.Is(err, ErrFieldNotFound):
		response.RenderNotFound(w, "field not found")
	case errors.Is(err, store.ErrNotFound):
		response.RenderNotFound(w, "form not found")
	default:
		h.logger.Error("dzforms request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		response.RenderInternalError(w)
	}
}

func (h *handlers) loadForm(r *http.Request) (*models.Form, error) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "form id")
	if err != nil {
		return nil, err
	}
	return h.store.GetForm(r.Context(), id)
}

func (h *handlers) listForms(w http.ResponseWriter, r *http.Request) {
	forms, err := h.store.ListForms(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"forms": forms})
}

func (h *handlers) getForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.loadForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"form": form})
}

func (h *handlers) createForm(w http.ResponseWriter, r *http.Request) {
	var in formInput
	if err := request.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	name, desc, fields, err := in.normalize()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	form, err := h.store.CreateForm(r.Context(), name, desc, fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, map[string]any{"success": true, "form": form})
}

func (h *handlers) updateForm(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "form id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in formInput
	if err := request.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	name, desc, fields, err := in.normalize()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	form, err := h.store.UpdateForm(r.Context(), id, name, desc, fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"success": true, "form": form})
}

func (h *handlers) deleteForm(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "form id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.DeleteForm(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"success": true})
}

func (h *handlers) embedCode(w http.ResponseWriter, r *http.Request) {
	form, err := h.loadForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"script_url": ScriptURL(h.baseURL, form.ID),
		"snippet":    Snippet(h.baseURL, form.ID),
	})
}

func (h *handlers) preview(w http.ResponseWriter, r *http.Request) {
	form, err := h.loadForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fields, err := ParseFields(form.Fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"form_id": form.ID,
		"name":    form.Name,
		"fields":  Resolve(fields),
	})
}

func (h *handlers) embedScript(w http.ResponseWriter, r *http.Request) {
	form, err := h.loadForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fields, err := ParseFields(form.Fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	script, err := EmbedScript(h.baseURL, form.ID, form.Name, fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cache.ServeBytes(w, r, script, "application/javascript; charset=utf-8", EmbedMaxAge)
}

// editFields applies fn to the stored field list of the form in the URL.
// The read and the write share one transaction.
func (h *handlers) editFields(w http.ResponseWriter, r *http.Request, fn func([]Field) ([]Field, error)) ([]Field, bool) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "form id")
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	var fields []Field
	_, err = h.store.EditFormFields(r.Context(), id, func(current string) (string, error) {
		parsed, err := ParseFields(current)
		if err != nil {
			return "", err
		}
		if fields, err = fn(parsed); err != nil {
			return "", err
		}
		return EncodeFields(fields)
	})
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return fields, true
}

func (h *handlers) addField(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type string `json:"type"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	var added Field
	fields, ok := h.editFields(w, r, func(fields []Field) ([]Field, error) {
		out, f, err := AddField(fields, in.Type)
		added = f
		return out, err
	})
	if !ok {
		return
	}
	response.Created(w, map[string]any{"field": added, "fields": fields})
}

func (h *handlers) updateField(w http.ResponseWriter, r *http.Request) {
	var patch FieldPatch
	if err := request.DecodeJSON(w, r, &patch); err != nil {
		h.fail(w, r, err)
		return
	}
	fieldID := chi.URLParam(r, "fieldID")
	fields, ok := h.editFields(w, r, func(fields []Field) ([]Field, error) {
		return UpdateField(fields, fieldID, patch)
	})
	if !ok {
		return
	}
	response.OK(w, map[string]any{"fields": fields})
}

func (h *handlers) deleteField(w http.ResponseWriter, r *http.Request) {
	fieldID := chi.URLParam(r, "fieldID")
	fields, ok := h.editFields(w, r, func(fields []Field) ([]Field, error) {
		return DeleteField(fields, fieldID)
	})
	if !ok {
		return
	}
	response.OK(w, map[string]any{"fields": fields})
}

func (h *handlers) moveField(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Index *int `json:"index"`
	}
	if err := request.DecodeJSON(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.Index == nil {
		response.RenderBadRequest(w, "index is required")
		return
	}
	fieldID := chi.URLParam(r, "fieldID")
	fields, ok := h.editFields(w, r, func(fields []Field) ([]Field, error) {
		return MoveField(fields, fieldID, *in.Index)
	})
	if !ok {
		return
	}
	response.OK(w, map[string]any{"fields": fields})
}

func (h *handlers) listTemplates(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, map[string]any{"templates": Templates})
}

func (h *handlers) createFromTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := FindTemplate(chi.URLParam(r, "templateID"))
	if !ok {
		response.RenderNotFound(w, "template not found")
		return
	}
	fields, err := EncodeFields(tmpl.Expand())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	desc := tmpl.Description()
	form, err := h.store.CreateForm(r.Context(), tmpl.Name, &desc, fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, map[string]any{"success": true, "form": form})
}

func (h *handlers) listEntries(w http.ResponseWriter, r *http.Request) {
	form, err := h.loadForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.store.ListFormEntries(r.Context(), form.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"entries": entries})
}

func (h *handlers) deleteEntry(w http.ResponseWriter, r *http.Request) {
	formID, err := request.PathInt64(chi.URLParam(r, "id"), "form id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entryID, err := request.PathInt64(chi.URLParam(r, "entryID"), "entry id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.DeleteFormEntry(r.Context(), formID, entryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.RenderNotFound(w, "entry not found")
			return
		}
		h.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"success": true})
}

// submissionValues reads a JSON object or an urlencoded form body
func submissionValues(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, request.DefaultMaxBodySize)
		if err := r.ParseMultipartForm(request.DefaultMaxBodySize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, response.NewHTTPError(http.StatusBadRequest, "invalid form body")
		}
		values := make(map[string]any, len(r.PostForm))
		for k, v := range r.PostForm {
			if len(v) == 1 {
				values[k] = v[0]
			} else {
				values[k] = v
			}
		}
		return values, nil
	}

	var values map[string]any
	if err := request.DecodeJSON(w, r, &values); err != nil {
		return nil, err
	}
	if values == nil {
		return nil, response.NewHTTPError(http.StatusBadRequest, "submission must be a JSON object")
	}
	return values, nil
}

func (h *handlers) submitEntry(w http.ResponseWriter, r *http.Request) {
	form, err := h.loadForm(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	fields, err := ParseFields(form.Fields)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	values, err := submissionValues(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	clean, err := ValidateEntry(Resolve(fields), values)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := json.Marshal(clean)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	entry, err := h.store.CreateFormEntry(r.Context(), &models.FormEntry{
		FormID:    form.ID,
		Data:      string(data),
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.events != nil {
		h.events.Publish(EntriesTopic, map[string]any{
			"form_id":    form.ID,
			"form_name":  form.Name,
			"entry_id":   entry.ID,
			"created_at": entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	response.Created(w, map[string]any{
		"success": true,
		"id":      entry.ID,
		"message": "Thank you! Your submission has been received.",
	})
}
