package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu      sync.Mutex
	batches [][]Change
}

func (r *recorder) onChange(_ context.Context, changes []Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changes)
}

func (r *recorder) paths() map[string]Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Op)
	for _, b := range r.batches {
		for _, c := range b {
			out[c.Path] = c.Op
		}
	}
	return out
}

func startWatcher(t *testing.T, cfg Config) func() {
	t.Helper()
	w, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give Run time to register the tree
	time.Sleep(50 * time.Millisecond)
	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
	_, err = New(Config{Root: t.TempDir()}, nil)
	assert.Error(t, err)
}

func TestWatcherReportsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes"), 0o755))
	rec := &recorder{}
	stop := startWatcher(t, Config{
		Root:     root,
		Debounce: 20 * time.Millisecond,
		Match:    func(rel string) bool { return strings.HasSuffix(rel, ".md") },
		OnChange: rec.onChange,
	})
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "a.md"), []byte("# a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD.md"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		_, ok := rec.paths()["notes/a.md"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	paths := rec.paths()
	assert.NotContains(t, paths, "ignored.txt")
	assert.NotContains(t, paths, ".git/HEAD.md")
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	stop := startWatcher(t, Config{Root: root, Debounce: 20 * time.Millisecond, OnChange: rec.onChange})
	defer stop()

	dir := filepath.Join(root, "aurora")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	assert.Eventually(t, func() bool {
		return rec.paths()["aurora"] == OpCreate
	}, 2*time.Second, 10*time.Millisecond)

	// the new directory is now watched too
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>"), 0o644))
	assert.Eventually(t, func() bool {
		_, ok := rec.paths()["aurora/index.html"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.RemoveAll(dir))
	assert.Eventually(t, func() bool {
		return rec.paths()["aurora"] == OpRemove
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMerge(t *testing.T) {
	assert.Equal(t, OpCreate, merge(OpCreate, OpWrite))
	assert.Equal(t, OpRemove, merge(OpCreate, OpRemove))
	assert.Equal(t, OpWrite, merge("", OpWrite))
}

func TestHidden(t *testing.T) {
	assert.True(t, hidden(".git/config"))
	assert.True(t, hidden("notes/.draft.md"))
	assert.False(t, hidden("notes/draft.md"))
}
