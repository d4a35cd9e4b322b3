// Package watch reports debounced filesystem changes under a directory tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Op is what happened to a path
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// Change is one changed path, relative to the watched root and slash-separated
type Change struct {
	Path string
	Op   Op
}

// Config controls which events are reported and how they are batched
type Config struct {
	Root string
	// Debounce is the quiet period before a batch is delivered
	Debounce time.Duration
	// Match filters reported paths; nil reports everything not hidden
	Match func(rel string) bool
	// OnChange receives each batch, sorted by path, from the Run goroutine
	OnChange func(ctx context.Context, changes []Change)
}

// Watcher watches Root and all of its non-hidden subdirectories
type Watcher struct {
	cfg     Config
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// New creates a watcher; nothing is observed until Run
func New(cfg Config, logger *zap.Logger) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch root is required")
	}
	if cfg.OnChange == nil {
		return nil, errors.New("change callback is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	cfg.Root = abs

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{cfg: cfg, logger: logger, watcher: fw}, nil
}

// Run watches until ctx is done, delivering debounced batches to OnChange.
// It closes the underlying watcher before returning.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.addTree(w.cfg.Root); err != nil {
		return err
	}
	w.logger.Debug("watching directory", zap.String("root", w.cfg.Root))

	pending := make(map[string]Op)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if c, ok := w.translate(ev); ok {
				pending[c.Path] = merge(pending[c.Path], c.Op)
				timer.Reset(w.cfg.Debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]Change, 0, len(pending))
			for p, op := range pending {
				batch = append(batch, Change{Path: p, Op: op})
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
			pending = make(map[string]Op)
			w.cfg.OnChange(ctx, batch)
		}
	}
}

// merge keeps the most significant op seen for a path within one batch
func merge(prev, next Op) Op {
	if prev == OpCreate && next == OpWrite {
		return OpCreate
	}
	return next
}

func (w *Watcher) translate(ev fsnotify.Event) (Change, bool) {
	rel, err := filepath.Rel(w.cfg.Root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return Change{}, false
	}
	rel = filepath.ToSlash(rel)
	if hidden(rel) {
		return Change{}, false
	}

	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		// new directories must be watched explicitly
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", rel), zap.Error(err))
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return Change{}, false
	}

	if w.cfg.Match != nil && !w.cfg.Match(rel) {
		// directories always pass so theme folders are reported
		if op == OpCreate || op == OpWrite {
			if info, err := os.Stat(ev.Name); err != nil || !info.IsDir() {
				return Change{}, false
			}
		} else if filepath.Ext(rel) != "" {
			return Change{}, false
		}
	}
	return Change{Path: rel, Op: op}, true
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// directories can vanish while we walk
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", p, err)
		}
		return nil
	})
}

func hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
