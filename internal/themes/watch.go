package themes

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/watch"
)

// ChangedTopic is published whenever files under the themes root change
const ChangedTopic = "themes.changed"

// Publisher broadcasts live events
type Publisher interface {
	Publish(topic string, data any)
}

// ChangeEvent is the payload of ChangedTopic
type ChangeEvent struct {
	Themes  []string `json:"themes"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Paths   []string `json:"paths"`
}

// Watcher tracks the installed theme set and reports changes
type Watcher struct {
	themes *Manager
	events Publisher
	logger *zap.Logger

	mu    sync.Mutex
	known map[string]bool
}

// NewWatcher snapshots the current themes. events may be nil.
func NewWatcher(themes *Manager, events Publisher, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	known, err := themes.Names()
	if err != nil {
		return nil, err
	}
	return &Watcher{themes: themes, events: events, logger: logger, known: known}, nil
}

// Run watches the themes root until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := watch.New(watch.Config{
		Root:     w.themes.Root(),
		OnChange: w.handle,
	}, w.logger)
	if err != nil {
		return err
	}
	return fw.Run(ctx)
}

func (w *Watcher) handle(_ context.Context, changes []watch.Change) {
	current, err := w.themes.Names()
	if err != nil {
		w.logger.Warn("failed to rescan themes", zap.Error(err))
		return
	}

	w.mu.Lock()
	added, removed := diff(w.known, current)
	w.known = current
	w.mu.Unlock()

	for _, name := range added {
		w.logger.Info("theme added", zap.String("theme", name))
	}
	for _, name := range removed {
		w.logger.Info("theme removed", zap.String("theme", name))
	}

	if w.events == nil {
		return
	}
	ev := ChangeEvent{Themes: sortedKeys(current), Added: added, Removed: removed}
	for _, c := range changes {
		ev.Paths = append(ev.Paths, c.Path)
	}
	w.events.Publish(ChangedTopic, ev)
}

func diff(before, after map[string]bool) (added, removed []string) {
	for name := range after {
		if !before[name] {
			added = append(added, name)
		}
	}
	for name := range before {
		if !after[name] {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
