package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)
	assert.Equal(t, "local", s.Type())

	path, url, err := s.Save("abc.png", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.png"), path)
	assert.Equal(t, "/uploads/abc.png", url)

	rc, err := s.Open(path)
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "data", string(b))

	located, err := s.Locate("abc.png")
	require.NoError(t, err)
	assert.Equal(t, path, located)

	_, _, err = s.Save("abc.png", strings.NewReader("again"))
	assert.Error(t, err, "existing files are never overwritten")

	require.NoError(t, s.Delete(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Delete(path), "deleting twice is fine")
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(filepath.Join(dir, "uploads"), "/uploads")
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../x.png", "a/b.png"} {
		_, _, err := s.Save(name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
		_, err = s.Locate(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	outside := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	assert.ErrorIs(t, s.Delete(outside), ErrInvalidName)
	_, err = s.Open(outside)
	assert.ErrorIs(t, err, ErrInvalidName)
}
