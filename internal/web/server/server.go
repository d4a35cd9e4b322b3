// Package server runs the dz HTTP server with graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds server configuration
type Config struct {
	// Addr is the listen address, e.g. ":8080"
	Addr    string
	Handler http.Handler

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	// WriteTimeout must cover the largest upload
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration

	// TLS is enabled when both files are set
	CertFile string
	KeyFile  string
}

// DefaultConfig returns production defaults for handler
func DefaultConfig(handler http.Handler) Config {
	return Config{
		Addr:              ":8080",
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Server wraps http.Server with a context-driven lifecycle
type Server struct {
	httpServer *http.Server
	cfg        Config
	logger     *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	hooks    []Hook
}

// New validates cfg and builds a server
func New(cfg Config, logger *zap.Logger) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, errors.New("both cert and key files are required for TLS")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cfg.Handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
	if cfg.CertFile != "" {
		hs.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Server{httpServer: hs, cfg: cfg, logger: logger}, nil
}

// Listen binds the listen address. Run calls it when it has not been called.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Run serves until ctx is cancelled or serving fails, then shuts down
// gracefully and runs the shutdown hooks.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening",
			zap.String("addr", s.Addr()), zap.Bool("tls", s.cfg.CertFile != ""))
		var err error
		if s.cfg.CertFile != "" {
			err = s.httpServer.ServeTLS(s.listener, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.httpServer.Serve(s.listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down http server", zap.Duration("timeout", s.cfg.ShutdownTimeout))
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	errs = append(errs, s.runHooks(ctx)...)
	return errors.Join(errs...)
}
