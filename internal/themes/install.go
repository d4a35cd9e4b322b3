package themes

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Upload and extraction limits
const (
	MaxUploadSize = 50 << 20
	MaxFileSize   = 100 << 20
)

var (
	ErrNotZip      = errors.New("only zip files are allowed")
	ErrFileTooBig  = errors.New("theme file exceeds size limit")
	zipMagic       = []byte{0x50, 0x4B, 0x03, 0x04}
	zipContentType = map[string]bool{
		"application/zip":              true,
		"application/x-zip-compressed": true,
		"application/x-zip":            true,
	}
)

// Limits bound an extraction
type Limits struct {
	// MaxFileSize caps each extracted file
	MaxFileSize int64
}

// NameFromFilename checks an uploaded file name and returns the theme name
func NameFromFilename(filename string) (string, error) {
	base := filepath.Base(filepath.FromSlash(filename))
	if !strings.EqualFold(filepath.Ext(base), ".zip") {
		return "", ErrNotZip
	}
	name := base[:len(base)-len(".zip")]
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	return name, nil
}

// CheckZip accepts an upload declared as a zip or starting with the zip
// signature
func CheckZip(contentType string, head []byte) error {
	if zipContentType[strings.ToLower(strings.TrimSpace(contentType))] {
		return nil
	}
	if bytes.HasPrefix(head, zipMagic) {
		return nil
	}
	return ErrNotZip
}

// Install extracts the zip archive in r as theme name. The theme must not
// exist yet and must contain index.html at its root; on any failure the
// partial directory is removed.
func (m *Manager) Install(name string, r io.ReaderAt, size int64, limits Limits) error {
	dir, err := m.Dir(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); err == nil {
		return ErrExists
	}

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotZip, err)
	}
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = MaxFileSize
	}

	if err := extract(zr, dir, limits, m.logger); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	if !hasIndex(dir) {
		_ = os.RemoveAll(dir)
		return ErrMissingIndex
	}
	m.logger.Info("theme installed", zap.String("theme", name))
	return nil
}

// Remove deletes an installed theme
func (m *Manager) Remove(name string) error {
	dir, err := m.Dir(name)
	if err != nil {
		return err
	}
	if !m.Exists(name) {
		return ErrNotFound
	}
	return os.RemoveAll(dir)
}

// within reports whether target stays inside dir
func within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func extract(zr *zip.Reader, dest string, limits Limits, logger *zap.Logger) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, f := range zr.File {
		clean := filepath.Clean(filepath.FromSlash(f.Name))
		target := filepath.Join(dest, clean)
		if filepath.IsAbs(clean) || !within(dest, target) || target == dest {
			logger.Warn("skipping zip entry outside theme", zap.String("entry", f.Name))
			continue
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		case !mode.IsRegular():
			logger.Warn("skipping non-regular zip entry", zap.String("entry", f.Name))
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target, limits.MaxFileSize); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string, maxSize int64) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > maxSize {
		return ErrFileTooBig
	}
	return nil
}
