package request

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/dragonbytelabs/dz/internal/web/response"
)

// UploadedFile is a single multipart file part
type UploadedFile struct {
	Filename string
	Size     int64
	// ContentType is what the client declared for the part
	ContentType string
	File        multipart.File
}

// Close releases the underlying part
func (f *UploadedFile) Close() error {
	return f.File.Close()
}

// Sniff returns the first bytes of the file (up to 512) and rewinds it
func (f *UploadedFile) Sniff() ([]byte, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f.File, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if _, err := f.File.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind upload: %w", err)
	}
	return head[:n], nil
}

// DetectContentType sniffs the content like http.DetectContentType
func (f *UploadedFile) DetectContentType() (string, error) {
	head, err := f.Sniff()
	if err != nil {
		return "", err
	}
	return http.DetectContentType(head), nil
}

// FormFile reads the multipart file in field, rejecting bodies over maxSize bytes
func FormFile(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (*UploadedFile, error) {
	// multipart framing needs some headroom over the file itself
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, response.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
		}
		return nil, response.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, response.NewHTTPError(http.StatusBadRequest, "no file uploaded")
		}
		return nil, response.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}
	if header.Size > maxSize {
		file.Close()
		return nil, response.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	return &UploadedFile{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		File:        file,
	}, nil
}
