package plugins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/search"
	"github.com/dragonbytelabs/dz/internal/web/response"
)

var (
	ErrDuplicate   = errors.New("plugin already registered")
	ErrUnknown     = errors.New("plugin not registered")
	ErrInvalidName = errors.New("invalid plugin name")
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidName reports whether name can identify a plugin
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Catalog persists plugin rows
type Catalog interface {
	EnsurePlugin(ctx context.Context, p *models.Plugin) (*models.Plugin, error)
}

// Registry holds registered plugins and their active flags.
type Registry struct {
	base Context

	mu      sync.RWMutex
	plugins map[string]Plugin
	active  map[string]bool
}

// NewRegistry creates a registry. Every plugin registered later receives a
// copy of base with its Router narrowed to the plugin.
func NewRegistry(base Context) *Registry {
	if base.Logger == nil {
		base.Logger = zap.NewNop()
	}
	return &Registry{
		base:    base,
		plugins: make(map[string]Plugin),
		active:  make(map[string]bool),
	}
}

// Register adds p and lets it mount its routes. Plugins start inactive.
func (r *Registry) Register(p Plugin) error {
	name := p.Name()
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	r.mu.Lock()
	if _, ok := r.plugins[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.plugins[name] = p
	r.mu.Unlock()

	pc := r.base
	pc.Logger = r.base.Logger.With(zap.String("plugin", name))
	if r.base.Router != nil {
		pc.Router = r.base.Router.With(r.Guard(name))
	}
	if err := p.Register(&pc); err != nil {
		r.mu.Lock()
		delete(r.plugins, name)
		r.mu.Unlock()
		return fmt.Errorf("register plugin %s: %w", name, err)
	}
	return nil
}

// Get returns the plugin called name
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// List returns every registered plugin sorted by name
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.plugins))
	for name, p := range r.plugins {
		out = append(out, Info{
			Name:        name,
			DisplayName: p.DisplayName(),
			Description: p.Description(),
			Version:     p.Version(),
			Active:      r.active[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsActive reports whether name is registered and active
func (r *Registry) IsActive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[name]
}

// Activate runs the plugin's OnActivate hook and marks it active. A failing
// hook leaves the plugin inactive.
func (r *Registry) Activate(ctx context.Context, name string) error {
	return r.transition(ctx, name, true)
}

// Deactivate runs OnDeactivate and marks the plugin inactive
func (r *Registry) Deactivate(ctx context.Context, name string) error {
	return r.transition(ctx, name, false)
}

func (r *Registry) transition(ctx context.Context, name string, active bool) error {
	p, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}

	hook, verb := p.OnDeactivate, "deactivate"
	if active {
		hook, verb = p.OnActivate, "activate"
	}
	if err := hook(ctx); err != nil {
		return fmt.Errorf("%s plugin %s: %w", verb, name, err)
	}

	r.Mark(name, active)
	r.base.Logger.Info("plugin status changed", zap.String("plugin", name), zap.Bool("active", active))
	return nil
}

// Mark sets the active flag without running hooks. It is used to restore
// persisted state and to roll back a failed status change.
func (r *Registry) Mark(name string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[name]; !ok {
		return
	}
	if active {
		r.active[name] = true
	} else {
		delete(r.active, name)
	}
}

// Sync ensures every registered plugin has a catalog row and loads the
// persisted active flag of each.
func (r *Registry) Sync(ctx context.Context, c Catalog) error {
	for _, info := range r.List() {
		p, _ := r.Get(info.Name)
		row, err := c.EnsurePlugin(ctx, Model(p))
		if err != nil {
			return fmt.Errorf("sync plugin %s: %w", info.Name, err)
		}
		r.Mark(info.Name, row.IsActive)
	}
	return nil
}

// Commands collects palette actions from active plugins in name order
func (r *Registry) Commands() []search.Action {
	var out []search.Action
	for _, info := range r.List() {
		if !info.Active {
			continue
		}
		p, _ := r.Get(info.Name)
		cp, ok := p.(CommandProvider)
		if !ok {
			continue
		}
		for _, a := range cp.Commands() {
			if a.Icon == "" {
				a.Icon = search.PluginIcon
			}
			out = append(out, a)
		}
	}
	return out
}

// Guard answers 404 while the named plugin is inactive
func (r *Registry) Guard(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !r.IsActive(name) {
				response.RenderNotFound(w, "")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
