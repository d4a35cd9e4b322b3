package api

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/storage"
	"github.com/dragonbytelabs/dz/internal/store"
	webcontext "github.com/dragonbytelabs/dz/internal/web/context"
	"github.com/dragonbytelabs/dz/internal/web/request"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

// UploadMaxAge is the browser cache lifetime of uploaded files in seconds
const UploadMaxAge = 86400

const svgType = "image/svg+xml"

var (
	errMediaNotFound = response.NewHTTPError(http.StatusNotFound, "media not found")
	errNotAnImage    = response.NewHTTPError(http.StatusBadRequest, "invalid file type, only images are allowed")
)

// mediaExtensions lists the accepted types with the extension used when the
// upload name has none
var mediaExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	svgType:      ".svg",
}

// detectImageType sniffs head. SVG cannot be sniffed reliably, so it is
// accepted when declared or when the content opens with markup.
func detectImageType(head []byte, declared string) (string, bool) {
	detected := http.DetectContentType(head)
	if base, _, _ := strings.Cut(detected, ";"); base != "" {
		detected = base
	}
	if _, ok := mediaExtensions[detected]; ok && detected != svgType {
		return detected, true
	}

	declared, _, _ = strings.Cut(strings.ToLower(strings.TrimSpace(declared)), ";")
	trimmed := bytes.TrimSpace(head)
	if declared == svgType || bytes.HasPrefix(trimmed, []byte("<svg")) || bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return svgType, true
	}
	return "", false
}

// mediaFilename returns 32 random hex characters plus an extension. The
// upload's own extension is kept only when it maps to the detected type, so a
// file is never served back under a type it was not checked as.
func mediaFilename(original, mimeType string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(original))
	if base, _, _ := strings.Cut(mime.TypeByExtension(ext), ";"); ext == "" || base != mimeType {
		ext = mediaExtensions[mimeType]
	}
	return hex.EncodeToString(b) + ext, nil
}

func mediaErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errMediaNotFound
	}
	return err
}

func (a *API) mediaStore(w http.ResponseWriter) (storage.Store, bool) {
	if a.cfg.Media == nil {
		response.RenderNotFound(w, "media storage is not configured")
		return nil, false
	}
	return a.cfg.Media, true
}

func (a *API) uploadMedia(w http.ResponseWriter, r *http.Request) {
	backend, ok := a.mediaStore(w)
	if !ok {
		return
	}
	file, err := request.FormFile(w, r, "file", a.cfg.MaxMediaSize)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer file.Close()

	head, err := file.Sniff()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	mimeType, ok := detectImageType(head, file.ContentType)
	if !ok {
		a.fail(w, r, errNotAnImage)
		return
	}

	name, err := mediaFilename(file.Filename, mimeType)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	storagePath, url, err := backend.Save(name, file.File)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	u := webcontext.CurrentUser(r.Context())
	m, err := a.cfg.Store.CreateMedia(r.Context(), &models.Media{
		UserID:       u.ID,
		Filename:     name,
		OriginalName: filepath.Base(file.Filename),
		MimeType:     mimeType,
		Size:         file.Size,
		StorageType:  backend.Type(),
		StoragePath:  storagePath,
		URL:          url,
	})
	if err != nil {
		if derr := backend.Delete(storagePath); derr != nil {
			a.logger.Warn("failed to remove orphaned upload", zap.String("path", storagePath), zap.Error(derr))
		}
		a.fail(w, r, err)
		return
	}

	a.logger.Info("media uploaded",
		zap.Int64("media_id", m.ID),
		zap.String("mime_type", mimeType),
		zap.Int64("size", m.Size))
	response.Created(w, m)
}

func (a *API) listMedia(w http.ResponseWriter, r *http.Request) {
	u := webcontext.CurrentUser(r.Context())
	media, err := a.cfg.Store.ListMedia(r.Context(), u.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	response.OK(w, map[string]any{"media": media})
}

func (a *API) getMedia(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "media id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u := webcontext.CurrentUser(r.Context())
	m, err := a.cfg.Store.GetMedia(r.Context(), u.ID, id)
	if err != nil {
		a.fail(w, r, mediaErr(err))
		return
	}
	response.OK(w, m)
}

func (a *API) deleteMedia(w http.ResponseWriter, r *http.Request) {
	id, err := request.PathInt64(chi.URLParam(r, "id"), "media id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ctx := r.Context()
	u := webcontext.CurrentUser(ctx)
	m, err := a.cfg.Store.GetMedia(ctx, u.ID, id)
	if err != nil {
		a.fail(w, r, mediaErr(err))
		return
	}

	if a.cfg.Media != nil {
		// the row goes even when the file is already gone
		if err := a.cfg.Media.Delete(m.StoragePath); err != nil {
			a.logger.Warn("failed to delete media file", zap.Int64("media_id", id), zap.Error(err))
		}
	}
	if err := a.cfg.Store.DeleteMedia(ctx, u.ID, id); err != nil {
		a.fail(w, r, mediaErr(err))
		return
	}
	response.OK(w, map[string]bool{"success": true})
}

func (a *API) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	storagePath, err := a.cfg.Media.Locate(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	rc, err := a.cfg.Media.Open(storagePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(UploadMaxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		a.logger.Debug("upload stream interrupted", zap.String("name", name), zap.Error(err))
	}
}
