// Package storage holds the media storage backends.
package storage

import (
	"errors"
	"io"
)

// ErrInvalidName is returned for names that are empty or contain path separators
var ErrInvalidName = errors.New("invalid storage name")

// Store is a media storage backend
type Store interface {
	// Save stores content under name and returns its storage path and public URL
	Save(name string, content io.Reader) (storagePath, url string, err error)
	// Open returns the content stored at storagePath
	Open(storagePath string) (io.ReadCloser, error)
	// Locate maps a public file name back to its storage path
	Locate(name string) (storagePath string, err error)
	// Delete removes the content at storagePath. Missing content is not an error.
	Delete(storagePath string) error
	// Type identifies the backend, e.g. "local"
	Type() string
}
