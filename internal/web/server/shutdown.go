package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Hook releases a resource after the server stops accepting requests
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// OnShutdown registers a hook. Hooks run in reverse registration order, so
// resources opened first are released last.
func (s *Server) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// runHooks runs every hook even when some fail
func (s *Server) runHooks(ctx context.Context) []error {
	s.mu.Lock()
	hooks := make([]Hook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.Fn(ctx); err != nil {
			s.logger.Error("shutdown hook failed", zap.String("hook", h.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown hook %s: %w", h.Name, err))
			continue
		}
		s.logger.Debug("shutdown hook done", zap.String("hook", h.Name))
	}
	return errs
}
