package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migration represents a single schema migration
type Migration struct {
	Version   int64
	Name      string
	Up        string
	Down      string
	Applied   bool
	AppliedAt time.Time
}

// MigrationStatus represents the current state of migrations
type MigrationStatus struct {
	Total       int
	Applied     []*Migration
	Pending     []*Migration
	LastApplied *Migration
}

// Summary returns a human-readable summary
func (s *MigrationStatus) Summary() string {
	return fmt.Sprintf("Total: %d migrations (%d applied, %d pending)",
		s.Total, len(s.Applied), len(s.Pending))
}

// Migrations returns the embedded migrations for the connection's dialect in version order
func (d *DB) Migrations() ([]*Migration, error) {
	return loadMigrations(migrationsFS, path.Join("migrations", string(d.dialect)))
}

// loadMigrations reads NNNN_name.up.sql / NNNN_name.down.sql pairs from dir
func loadMigrations(fsys fs.FS, dir string) ([]*Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}

		base := strings.TrimSuffix(e.Name(), ".sql")
		direction := path.Ext(base)
		if direction != ".up" && direction != ".down" {
			return nil, fmt.Errorf("migration %s must end in .up.sql or .down.sql", e.Name())
		}
		base = strings.TrimSuffix(base, direction)

		prefix, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s has no version prefix", e.Name())
		}
		version, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s has invalid version: %w", e.Name(), err)
		}

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == ".up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	migrations := make([]*Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %d_%s has no up SQL", m.Version, m.Name)
		}
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

func (d *DB) initMigrations(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	down_sql TEXT
)`
	if d.dialect == DialectPostgres {
		query = strings.Replace(query, "TIMESTAMP NOT NULL", "TIMESTAMPTZ NOT NULL", 1)
	}
	if _, err := d.x.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}
	return nil
}

// AppliedMigrations returns all applied migrations sorted by version
func (d *DB) AppliedMigrations(ctx context.Context) ([]*Migration, error) {
	if err := d.initMigrations(ctx); err != nil {
		return nil, err
	}

	var rows []struct {
		Version   int64          `db:"version"`
		Name      string         `db:"name"`
		AppliedAt time.Time      `db:"applied_at"`
		Down      sql.NullString `db:"down_sql"`
	}
	if err := d.selectAll(ctx, &rows, `SELECT version, name, applied_at, down_sql FROM schema_migrations ORDER BY version ASC`); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make([]*Migration, 0, len(rows))
	for _, r := range rows {
		applied = append(applied, &Migration{
			Version:   r.Version,
			Name:      r.Name,
			AppliedAt: r.AppliedAt,
			Down:      r.Down.String,
			Applied:   true,
		})
	}
	return applied, nil
}

func pendingMigrations(all, applied []*Migration) []*Migration {
	done := make(map[int64]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}
	var pending []*Migration
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Migrate applies all pending migrations and returns how many ran
func (d *DB) Migrate(ctx context.Context) (int, error) {
	all, err := d.Migrations()
	if err != nil {
		return 0, err
	}
	applied, err := d.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	pending := pendingMigrations(all, applied)
	if len(pending) == 0 {
		d.logger.Debug("no pending migrations")
		return 0, nil
	}

	for _, m := range pending {
		start := time.Now()
		err := d.inTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return fmt.Errorf("failed to execute migration SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO schema_migrations (version, name, down_sql) VALUES (?, ?, ?)`),
				m.Version, m.Name, m.Down)
			if err != nil {
				return fmt.Errorf("failed to record migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("migration %d_%s failed: %w", m.Version, m.Name, err)
		}
		d.logger.Info("applied migration",
			zap.Int64("version", m.Version),
			zap.String("name", m.Name),
			zap.Duration("took", time.Since(start)))
	}

	return len(pending), nil
}

// ErrNoMigrations is returned by Rollback when nothing has been applied
var ErrNoMigrations = errors.New("no migrations to rollback")

// Rollback reverts the most recently applied migration
func (d *DB) Rollback(ctx context.Context) (*Migration, error) {
	applied, err := d.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, ErrNoMigrations
	}

	last := applied[len(applied)-1]
	if last.Down == "" {
		return nil, fmt.Errorf("migration %s has no down migration", last.Name)
	}

	err = d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, last.Down); err != nil {
			return fmt.Errorf("failed to execute rollback SQL: %w", err)
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM schema_migrations WHERE version = ?`), last.Version)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rollback of %s failed: %w", last.Name, err)
	}

	d.logger.Info("rolled back migration", zap.Int64("version", last.Version), zap.String("name", last.Name))
	return last, nil
}

// MigrationStatus reports applied and pending migrations
func (d *DB) MigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	all, err := d.Migrations()
	if err != nil {
		return nil, err
	}
	applied, err := d.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{
		Total:   len(all),
		Applied: applied,
		Pending: pendingMigrations(all, applied),
	}
	if len(applied) > 0 {
		status.LastApplied = applied[len(applied)-1]
	}
	return status, nil
}
