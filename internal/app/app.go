// Package app assembles the dz server from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dragonbytelabs/dz/internal/api"
	"github.com/dragonbytelabs/dz/internal/config"
	"github.com/dragonbytelabs/dz/internal/plugins"
	"github.com/dragonbytelabs/dz/internal/plugins/dzforms"
	"github.com/dragonbytelabs/dz/internal/search"
	"github.com/dragonbytelabs/dz/internal/storage"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/themes"
	"github.com/dragonbytelabs/dz/internal/vault"
	"github.com/dragonbytelabs/dz/internal/watch"
	"github.com/dragonbytelabs/dz/internal/web/auth"
	"github.com/dragonbytelabs/dz/internal/web/middleware"
	"github.com/dragonbytelabs/dz/internal/web/profiling"
	"github.com/dragonbytelabs/dz/internal/web/ratelimit"
	"github.com/dragonbytelabs/dz/internal/web/server"
	"github.com/dragonbytelabs/dz/internal/web/session"
	"github.com/dragonbytelabs/dz/internal/web/static"
	"github.com/dragonbytelabs/dz/internal/web/websocket"
)

// Mount points outside /api
const (
	AdminPrefix   = "/_/admin"
	PreviewPrefix = "/_/preview"
	AdminLogin    = AdminPrefix + "/login"
	RuntimePath   = "/_/debug/runtime"
)

// Options adjust New for tests and one-off commands
type Options struct {
	// Plugins replaces the built-in plugin set
	Plugins []plugins.Plugin
	// SkipBootstrap disables default admin creation
	SkipBootstrap bool
}

// BuiltinPlugins returns the plugins compiled into dz
func BuiltinPlugins() []plugins.Plugin {
	return []plugins.Plugin{dzforms.New()}
}

// App owns every long-lived service of a running dz server.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	DB       *store.DB
	Sessions *session.Manager
	Hub      *websocket.Hub
	Plugins  *plugins.Registry
	Themes   *themes.Manager
	Vault    *vault.Vault
	Index    *search.Index

	router  *chi.Mux
	redis   *redis.Client
	workers []worker
	closers []closer
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

type closer struct {
	name string
	fn   func() error
}

// New opens the database, applies migrations, bootstraps a fresh install and
// builds the router. Close releases what New opened when Run is not used.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := a.ensureContent(); err != nil {
		return nil, err
	}
	if err := a.openStore(ctx, opts.SkipBootstrap); err != nil {
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		return nil, err
	}

	sessions, err := a.sessionManager()
	if err != nil {
		return nil, err
	}
	a.Sessions = sessions
	a.addWorker("session-gc", func(ctx context.Context) error {
		sessions.RunGC(ctx)
		return nil
	})

	var tokens *auth.TokenService
	if cfg.Auth.JWTSecret != "" {
		if tokens, err = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL); err != nil {
			return nil, fmt.Errorf("failed to create token service: %w", err)
		}
	}

	loginLimiter, err := a.limiter("dz:login:", cfg.Auth.LoginRate, cfg.Auth.LoginWindow)
	if err != nil {
		return nil, err
	}
	// public form submissions share the login budget shape but not its keys
	submitLimiter, err := a.limiter("dz:submit:", cfg.Auth.LoginRate, cfg.Auth.LoginWindow)
	if err != nil {
		return nil, err
	}

	a.Hub = websocket.NewHub(logger.Named("ws"))
	a.addWorker("websocket-hub", func(ctx context.Context) error {
		a.Hub.Run(ctx)
		return nil
	})

	media, err := storage.NewLocalStore(cfg.Resolve(cfg.Content.UploadsPath), cfg.Server.BaseURL+"/uploads")
	if err != nil {
		return nil, err
	}

	if a.Vault, err = vault.New(cfg.Resolve(cfg.Content.VaultPath)); err != nil {
		return nil, err
	}
	a.Index = search.NewIndex(a.Vault, logger.Named("search"))
	a.addWorker("vault-watcher", a.watchVault)

	if a.Themes, err = themes.NewManager(cfg.Resolve(cfg.Content.ThemesPath), logger.Named("themes")); err != nil {
		return nil, err
	}
	themeWatcher, err := themes.NewWatcher(a.Themes, a.Hub, logger.Named("themes"))
	if err != nil {
		return nil, err
	}
	a.addWorker("theme-watcher", themeWatcher.Run)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.CORSOrigins
	stack := middleware.NewChain(
		middleware.RequestID,
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger:    logger.Named("http"),
			SkipPaths: []string{"/api/health"},
		}),
		middleware.Recovery(logger),
		middleware.CORS(cors),
	).Append(
		sessions.LoadAndSave,
		middleware.NewAuthenticator(a.DB, tokens, logger.Named("auth")).Authenticate,
	)

	r := chi.NewRouter()
	r.Use(stack.Funcs()...)
	a.router = r

	// plugins mount on r, so every global middleware must already be in place
	a.Plugins = plugins.NewRegistry(plugins.Context{
		Router:      r,
		Store:       a.DB,
		RequireAuth: middleware.RequireAuth,
		Events:      a.Hub,
		Limiter:     submitLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		BaseURL:     cfg.Server.BaseURL,
		Logger:      logger.Named("plugins"),
	})
	builtin := opts.Plugins
	if builtin == nil {
		builtin = BuiltinPlugins()
	}
	for _, p := range builtin {
		if err := a.Plugins.Register(p); err != nil {
			return nil, err
		}
	}
	if err := a.Plugins.Sync(ctx, a.DB); err != nil {
		return nil, err
	}
	logger.Info("plugins loaded", zap.Int("count", len(a.Plugins.List())))

	handlers, err := api.New(api.Config{
		AppName:         cfg.App.Name,
		Version:         cfg.App.Version,
		Store:           a.DB,
		Sessions:        sessions,
		Tokens:          tokens,
		Media:           media,
		Themes:          a.Themes,
		Vault:           a.Vault,
		Index:           a.Index,
		Plugins:         a.Plugins,
		Live:            websocket.NewHandler(a.Hub, a.checkOrigin, logger.Named("ws")),
		LoginLimiter:    loginLimiter,
		MinResponseTime: cfg.Auth.MinResponseTime,
		MaxMediaSize:    cfg.Media.MaxFileSize,
		ThemeLimits: api.ThemeLimits{
			MaxUploadSize: cfg.Themes.MaxUploadSize,
			MaxFileSize:   cfg.Themes.MaxFileSize,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	handlers.Routes(r)
	a.mountPages(r)

	return a, nil
}

func (a *App) ensureContent() error {
	c := a.cfg.Content
	for _, dir := range []string{c.BasePath, c.ThemesPath, c.PluginsPath, c.UploadsPath, c.VaultPath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(a.cfg.Resolve(dir), 0o755); err != nil {
			return fmt.Errorf("failed to create content folder %s: %w", dir, err)
		}
	}
	return nil
}

// DSN returns the configured data source, resolving sqlite files against the app root
func DSN(cfg *config.Config) string {
	dsn := cfg.Database.DSN
	switch cfg.Database.Driver {
	case "sqlite", "sqlite3":
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			dsn = cfg.Resolve(dsn)
		}
	}
	return dsn
}

func (a *App) openStore(ctx context.Context, skipBootstrap bool) error {
	db, err := store.Open(ctx, a.cfg.Database.Driver, DSN(a.cfg), a.logger.Named("store"))
	if err != nil {
		return err
	}
	a.DB = db
	a.addCloser("database", db.Close)

	n, err := db.Migrate(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		a.logger.Info("migrations applied", zap.Int("count", n))
	}
	if err := db.SeedSettings(ctx); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	if skipBootstrap {
		return nil
	}
	path, err := db.InitializeDefaultAdmin(ctx, store.AdminOptions{
		Email:           a.cfg.Admin.Email,
		DisplayName:     a.cfg.Admin.DisplayName,
		PasswordLength:  a.cfg.Admin.PasswordLength,
		CredentialsDir:  a.cfg.App.RootDir,
		CredentialsFile: a.cfg.Admin.CredentialsFile,
	})
	if err != nil {
		return err
	}
	if path != "" {
		a.logger.Warn("fresh install: default admin created, delete the credentials file after first login",
			zap.String("email", a.cfg.Admin.Email),
			zap.String("credentials", path))
	}
	return nil
}

func (a *App) openRedis(ctx context.Context) error {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.addCloser("redis", client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.Redis.Addr, err)
	}
	a.redis = client
	return nil
}

func (a *App) sessionManager() (*session.Manager, error) {
	var st session.Store
	switch a.cfg.Session.Store {
	case "memory":
		st = session.NewMemoryStore()
	case "database":
		st = session.NewDatabaseStore(a.DB.SQLX())
	case "redis":
		if a.redis == nil {
			return nil, errors.New("redis session store requires redis.addr")
		}
		st = session.NewRedisStore(a.redis, "dz:session:")
	default:
		return nil, fmt.Errorf("unknown session store %q", a.cfg.Session.Store)
	}
	a.addCloser("sessions", st.Close)

	return session.NewManager(st, session.Config{
		CookieName:      a.cfg.Session.CookieName,
		Secure:          a.cfg.Session.Secure,
		SameSite:        http.SameSiteLaxMode,
		IdleTimeout:     a.cfg.Session.IdleExpiration,
		AbsoluteTimeout: a.cfg.Session.AbsoluteExpiration,
		GCInterval:      a.cfg.Session.GCInterval,
	}, a.logger.Named("session")), nil
}

// limiter is redis-backed when redis is configured and in-process otherwise
func (a *App) limiter(prefix string, rate int, window time.Duration) (ratelimit.Limiter, error) {
	if a.redis != nil {
		return ratelimit.NewRedisLimiter(ratelimit.RedisLimiterConfig{
			Client: a.redis,
			Limit:  rate,
			Window: window,
			Prefix: prefix,
		})
	}
	tb := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
		Capacity:        rate,
		Window:          window,
		CleanupInterval: 5 * window,
	})
	a.addCloser(strings.TrimSuffix(prefix, ":")+" limiter", tb.Close)
	return tb, nil
}

// checkOrigin admits same-origin websocket upgrades and explicitly listed
// origins. The "*" CORS wildcard is not honoured here since the socket
// carries the session cookie.
func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	var explicit []string
	for _, o := range a.cfg.Server.CORSOrigins {
		if o != "*" {
			explicit = append(explicit, o)
		}
	}
	return middleware.OriginAllowed(origin, explicit)
}

// mountPages serves the admin SPA, theme previews and the active theme
func (a *App) mountPages(r chi.Router) {
	admin := &static.SPA{Root: a.cfg.Resolve(a.cfg.Server.AdminDir), MaxAge: themes.AssetMaxAge}
	if !admin.Exists() {
		a.logger.Warn("admin app not built; /_/admin will answer 404", zap.String("dir", admin.Root))
	}
	adminHandler := http.StripPrefix(AdminPrefix, admin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireGuest(AdminPrefix))
		r.Get(AdminLogin, adminHandler.ServeHTTP)
		r.Get(AdminPrefix+"/register", adminHandler.ServeHTTP)
	})
	r.Get(AdminPrefix, adminHandler.ServeHTTP)
	r.Get(AdminPrefix+"/*", adminHandler.ServeHTTP)

	site := themes.NewServer(a.Themes, a.DB, admin, a.logger.Named("themes"))
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthPage(AdminLogin))
		r.Get(PreviewPrefix+"/{name}", site.Preview)
		r.Get(PreviewPrefix+"/{name}/*", site.Preview)
		if a.cfg.Server.Profiling {
			profiling.Mount(r)
			r.Get(RuntimePath, profiling.StatsHandler)
			a.logger.Warn("profiling enabled", zap.String("path", profiling.Prefix))
		}
	})
	r.Handle("/*", site)
}

func (a *App) watchVault(ctx context.Context) error {
	w, err := watch.New(watch.Config{
		Root: a.Vault.Root(),
		OnChange: func(_ context.Context, changes []watch.Change) {
			a.Index.Invalidate()
			paths := make([]string, 0, len(changes))
			for _, c := range changes {
				paths = append(paths, c.Path)
			}
			a.Hub.Publish(VaultChangedTopic, map[string]any{"paths": paths})
		},
	}, a.logger.Named("vault"))
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// VaultChangedTopic is published when files in the vault change on disk
const VaultChangedTopic = "vault.changed"

func (a *App) addWorker(name string, run func(ctx context.Context) error) {
	a.workers = append(a.workers, worker{name: name, run: run})
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Handler returns the root HTTP handler
func (a *App) Handler() http.Handler { return a.router }

// Routes exposes the route tree for listing
func (a *App) Routes() chi.Routes { return a.router }

// Run serves HTTP on the configured address and runs the background workers
// until ctx is cancelled. Resources are released on return.
func (a *App) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		Addr:              a.cfg.Addr(),
		Handler:           a.router,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   a.cfg.Server.ShutdownTimeout,
	}, a.logger.Named("server"))
	if err != nil {
		return err
	}
	for _, c := range a.closers {
		c := c
		srv.OnShutdown(c.name, func(context.Context) error { return c.fn() })
	}
	a.closers = nil

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range a.workers {
		w := w
		g.Go(func() error {
			if err := w.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", w.name, err)
			}
			return nil
		})
	}
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

// Close releases resources in reverse order of acquisition. It is a no-op
// after Run.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", a.closers[i].name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
