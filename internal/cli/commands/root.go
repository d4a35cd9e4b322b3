// Package commands implements the dz command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dragonbytelabs/dz/internal/app"
	"github.com/dragonbytelabs/dz/internal/cli/ui"
	"github.com/dragonbytelabs/dz/internal/config"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/themes"
)

var (
	// Version information, set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// errReported marks errors whose message was already printed
type errReported struct{ err error }

func (e errReported) Error() string { return e.err.Error() }
func (e errReported) Unwrap() error { return e.err }

func reported(w io.Writer, m ui.Message, err error) error {
	m.Write(w)
	return errReported{err}
}

// globals holds the persistent flags and what is derived from them
type globals struct {
	configFile string
	debug      bool
	noColor    bool

	stderr io.Writer
	// clone fetches git theme sources; nil uses the git binary
	clone  themes.CloneFunc
	cfg    *config.Config
	logger *zap.Logger
}

func (g *globals) config() (*config.Config, error) {
	if g.cfg != nil {
		return g.cfg, nil
	}
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, reported(g.stderr, ui.ConfigProblem(err.Error(), g.noColor), err)
	}
	if Version != "dev" {
		cfg.App.Version = Version
	}
	g.cfg = cfg
	return cfg, nil
}

// log builds the zap logger from the log section; --debug forces debug level
// with console output
func (g *globals) log() (*zap.Logger, error) {
	if g.logger != nil {
		return g.logger, nil
	}
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Log.Development || g.debug {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Log.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Log.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if g.debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	g.logger = logger
	return logger, nil
}

// openStore connects to the configured database without migrating it
func (g *globals) openStore(ctx context.Context) (*store.DB, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	logger, err := g.log()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg.Database.Driver, app.DSN(cfg), logger.Named("store"))
}

// openMigrated is openStore followed by pending migrations
func (g *globals) openMigrated(ctx context.Context) (*store.DB, error) {
	db, err := g.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewRootCommand creates the dz command tree
func NewRootCommand() *cobra.Command {
	return newRoot(&globals{})
}

func newRoot(g *globals) *cobra.Command {
	g.stderr = io.Discard
	root := &cobra.Command{
		Use:   "dz",
		Short: "dz content management server",
		Long: color.CyanString(`dz - a self-hosted content management system

Serves the admin application, the active site theme and the REST API from a
single binary backed by SQLite or PostgreSQL.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.noColor {
				color.NoColor = true
			}
			g.stderr = cmd.ErrOrStderr()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logger != nil {
				_ = g.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "config file (default ./dz.yaml)")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "debug logging")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newVersionCommand(g),
		newServeCommand(g),
		newMigrateCommand(g),
		newAdminCommand(g),
		newThemeCommand(g),
		newPluginCommand(g),
		newRoutesCommand(g),
	)
	return root
}

func newVersionCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			f := ui.NewFields(cmd.OutOrStdout(), g.noColor)
			f.Add("dz version", Version)
			f.Add("Git commit", GitCommit)
			f.Add("Build date", BuildDate)
			f.Add("Go version", runtime.Version())
			f.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		var done errReported
		if !errors.As(err, &done) {
			color.New(color.FgRed, color.Bold).Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}
