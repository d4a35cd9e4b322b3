package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps media on the local filesystem
type LocalStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore creates basePath if needed. Files are served under baseURL.
func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// BasePath returns the directory files are written to
func (s *LocalStore) BasePath() string { return s.basePath }

func validName(name string) bool {
	return name != "" && name == filepath.Base(name) && name != "." && name != ".."
}

func (s *LocalStore) Save(name string, content io.Reader) (string, string, error) {
	if !validName(name) {
		return "", "", ErrInvalidName
	}

	storagePath := filepath.Join(s.basePath, name)
	f, err := os.OpenFile(storagePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(storagePath)
		return "", "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(storagePath)
		return "", "", fmt.Errorf("failed to write file: %w", err)
	}

	return storagePath, s.baseURL + "/" + name, nil
}

func (s *LocalStore) Open(storagePath string) (io.ReadCloser, error) {
	if err := s.contains(storagePath); err != nil {
		return nil, err
	}
	f, err := os.Open(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Locate(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(s.basePath, name), nil
}

func (s *LocalStore) Delete(storagePath string) error {
	if err := s.contains(storagePath); err != nil {
		return err
	}
	if err := os.Remove(storagePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStore) Type() string { return "local" }

// contains rejects paths outside basePath
func (s *LocalStore) contains(storagePath string) error {
	rel, err := filepath.Rel(s.basePath, storagePath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return ErrInvalidName
	}
	return nil
}
