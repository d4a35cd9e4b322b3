package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, err)
	return v
}

func writeFile(t *testing.T, v *Vault, rel, content string, mtime time.Time) {
	t.Helper()
	abs := filepath.Join(v.Root(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(abs, mtime, mtime))
}

func TestResolve(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{"simple", "note.md", false},
		{"nested", "a/b/note.md", false},
		{"dot segments inside", "a/../note.md", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"root", ".", true},
		{"parent", "..", true},
		{"escape", "../outside.md", true},
		{"nested escape", "a/../../outside.md", true},
		{"absolute", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.resolve(tt.rel)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestListMarkdown(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	now := time.Now()

	writeFile(t, v, "old.md", "old", now.Add(-2*time.Hour))
	writeFile(t, v, "dir/new.md", "new", now)
	writeFile(t, v, "mid.MD", "mid", now.Add(-time.Hour))
	writeFile(t, v, "image.png", "x", now)
	writeFile(t, v, ".git/HEAD.md", "x", now)

	files, err := v.ListMarkdown(ctx)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"dir/new.md", "mid.MD", "old.md"}, paths)
}

func TestListEntries(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	now := time.Now()

	writeFile(t, v, "b.md", "b", now)
	writeFile(t, v, "a/z.md", "z", now)
	writeFile(t, v, "a/notes.txt", "x", now)
	require.NoError(t, os.MkdirAll(filepath.Join(v.Root(), "empty"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(v.Root(), ".hidden"), 0o755))

	entries, err := v.ListEntries(ctx)
	require.NoError(t, err)

	var got []string
	for _, e := range entries {
		got = append(got, e.Kind+":"+e.Path)
	}
	assert.Equal(t, []string{"folder:a", "folder:empty", "file:a/z.md", "file:b.md"}, got)
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	created, err := v.CreateFile(ctx, "notes/today.md", "# Today")
	require.NoError(t, err)
	assert.Equal(t, "notes/today.md", created.Path)

	_, err = v.CreateFile(ctx, "notes/today.md", "again")
	assert.ErrorIs(t, err, ErrExists)

	read, err := v.ReadFile(ctx, "notes/today.md")
	require.NoError(t, err)
	assert.Equal(t, "# Today", read.Content)
	assert.Equal(t, created.Hash, read.Hash)

	res, err := v.WriteFile(ctx, "notes/today.md", WriteRequest{Content: "# Updated", IfMatch: read.Hash})
	require.NoError(t, err)
	assert.NotEqual(t, read.Hash, res.Hash)

	_, err = v.WriteFile(ctx, "notes/today.md", WriteRequest{Content: "stale", IfMatch: read.Hash})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = v.WriteFile(ctx, "notes/today.md", WriteRequest{Content: "forced"})
	assert.NoError(t, err, "writes without IfMatch always succeed")

	_, err = v.ReadFile(ctx, "missing.md")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = v.ReadFile(ctx, "notes")
	assert.ErrorIs(t, err, ErrIsDir)

	leftovers, err := filepath.Glob(filepath.Join(v.Root(), "notes", "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestConcurrentCreateKeepsFirstFile(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = v.CreateFile(ctx, "race.md", fmt.Sprintf("writer %d", i))
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			assert.Equal(t, -1, winner, "only one create may succeed")
			winner = i
			continue
		}
		assert.ErrorIs(t, err, ErrExists)
	}
	require.NotEqual(t, -1, winner)

	got, err := v.ReadFile(ctx, "race.md")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("writer %d", winner), got.Content)

	left, err := os.ReadDir(v.Root())
	require.NoError(t, err)
	assert.Len(t, left, 1, "temp files are cleaned up")
}

func TestConcurrentConditionalWrites(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	created, err := v.CreateFile(ctx, "note.md", "v1")
	require.NoError(t, err)

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = v.WriteFile(ctx, "note.md", WriteRequest{Content: fmt.Sprintf("v2 from %d", i), IfMatch: created.Hash})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrConflict)
	}
	assert.Equal(t, 1, ok)
}

func TestFoldersAndRename(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	require.NoError(t, v.CreateFolder(ctx, "projects"))
	assert.ErrorIs(t, v.CreateFolder(ctx, "projects"), ErrExists)

	_, err := v.CreateFile(ctx, "projects/a.md", "a")
	require.NoError(t, err)

	assert.ErrorIs(t, v.DeleteFile(ctx, "projects"), ErrIsDir)
	assert.ErrorIs(t, v.DeleteFolder(ctx, "projects/a.md"), ErrNotDir)

	require.NoError(t, v.Rename(ctx, "projects/a.md", "archive/a.md"))
	_, err = v.ReadFile(ctx, "archive/a.md")
	require.NoError(t, err)

	_, err = v.CreateFile(ctx, "b.md", "b")
	require.NoError(t, err)
	assert.ErrorIs(t, v.Rename(ctx, "b.md", "archive/a.md"), ErrExists)
	assert.ErrorIs(t, v.Rename(ctx, "nope.md", "x.md"), ErrNotFound)
	assert.ErrorIs(t, v.Rename(ctx, "archive", "archive/sub"), ErrInvalidPath)

	require.NoError(t, v.DeleteFile(ctx, "b.md"))
	require.NoError(t, v.DeleteFolder(ctx, "archive"))
	assert.ErrorIs(t, v.DeleteFolder(ctx, "archive"), ErrNotFound)
}
