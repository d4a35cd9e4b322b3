// Package search indexes vault notes and ranks them for the command palette.
package search

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dragonbytelabs/dz/internal/vault"
)

// DefaultConcurrency bounds parallel file reads while building the index
const DefaultConcurrency = 8

// Index is a lazily rebuilt, in-memory view of every note in a vault
type Index struct {
	vault       *vault.Vault
	logger      *zap.Logger
	concurrency int

	mu    sync.RWMutex
	notes []*Note
	stale bool
	// gen counts invalidations so a rebuild racing with one stays stale
	gen uint64

	group singleflight.Group
}

// NewIndex returns an index over v. It is built on first use.
func NewIndex(v *vault.Vault, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{vault: v, logger: logger, concurrency: DefaultConcurrency, stale: true}
}

// Invalidate marks the index for rebuild on next access
func (idx *Index) Invalidate() {
	idx.mu.Lock()
	idx.stale = true
	idx.gen++
	idx.mu.Unlock()
}

// Notes returns all notes sorted by path, rebuilding the index if it is stale.
// Concurrent callers share one rebuild, which outlives any single caller's
// cancellation.
func (idx *Index) Notes(ctx context.Context) ([]*Note, error) {
	idx.mu.RLock()
	if !idx.stale {
		notes := idx.notes
		idx.mu.RUnlock()
		return notes, nil
	}
	idx.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := idx.group.DoChan("build", func() (any, error) {
		idx.mu.RLock()
		gen := idx.gen
		idx.mu.RUnlock()

		notes, err := idx.build(buildCtx)
		if err != nil {
			return nil, err
		}

		idx.mu.Lock()
		idx.notes = notes
		if idx.gen == gen {
			idx.stale = false
		}
		idx.mu.Unlock()
		return notes, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*Note), nil
	}
}

func (idx *Index) build(ctx context.Context) ([]*Note, error) {
	files, err := idx.vault.ListMarkdown(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	notes := make([]*Note, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)

	for i, f := range files {
		g.Go(func() error {
			res, err := idx.vault.ReadFile(gctx, f.Path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				idx.logger.Debug("note unreadable, indexing by name only",
					zap.String("path", f.Path), zap.Error(err))
				notes[i] = &Note{Path: f.Path, Name: f.Name}
				return nil
			}
			notes[i] = ParseNote(f.Path, res.Content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	linkBacklinks(notes)
	idx.logger.Debug("search index built", zap.Int("notes", len(notes)))
	return notes, nil
}

// linkBacklinks resolves every note's outgoing links and records the
// source path on the target's Backlinks
func linkBacklinks(notes []*Note) {
	byPath := make(map[string]*Note, len(notes))
	for _, n := range notes {
		byPath[n.Path] = n
	}

	// keys are lower-cased; earlier passes take precedence
	keys := make(map[string]string)
	add := func(key, p string) {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return
		}
		if _, ok := keys[key]; !ok {
			keys[key] = p
		}
	}
	for _, n := range notes {
		add(n.Path, n.Path)
		add(strings.TrimSuffix(n.Path, path.Ext(n.Path)), n.Path)
	}
	for _, n := range notes {
		add(strings.TrimSuffix(n.Name, path.Ext(n.Name)), n.Path)
	}
	for _, n := range notes {
		add(n.ID, n.Path)
	}
	for _, n := range notes {
		add(n.Title, n.Path)
		for _, a := range n.Aliases {
			add(a, n.Path)
		}
	}

	resolve := func(from *Note, l Link) string {
		if l.Kind == LinkMarkdown {
			rel := path.Clean(path.Join(path.Dir(from.Path), l.Target))
			if _, ok := byPath[rel]; ok {
				return rel
			}
			if _, ok := byPath[rel+".md"]; ok {
				return rel + ".md"
			}
		}
		return keys[strings.ToLower(l.Target)]
	}

	backlinks := make(map[string]map[string]bool)
	for _, n := range notes {
		for _, l := range n.Links {
			target := resolve(n, l)
			if target == "" || target == n.Path {
				continue
			}
			if backlinks[target] == nil {
				backlinks[target] = make(map[string]bool)
			}
			backlinks[target][n.Path] = true
		}
	}

	for _, n := range notes {
		n.Backlinks = nil
		for src := range backlinks[n.Path] {
			n.Backlinks = append(n.Backlinks, src)
		}
		sort.Strings(n.Backlinks)
	}
}
