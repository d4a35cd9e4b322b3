// Package store is the dz persistence layer. Queries are written with '?'
// placeholders and rebound per driver, so the same code serves sqlite and
// postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DB wraps a sqlx handle together with its dialect
type DB struct {
	x       *sqlx.DB
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to the database behind driver and dsn.
// For sqlite drivers dsn may be a plain file path.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*DB, error) {
	info, err := lookupDriver(driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if info.dialect == DialectSQLite {
		dsn = sqliteDSN(driver, dsn)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if info.dialect == DialectSQLite {
		// single writer; WAL still allows concurrent readers inside one connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(sqlDB, driver, logger)
}

// New wraps an existing connection. It is used directly by tests with sqlmock.
func New(sqlDB *sql.DB, driver string, logger *zap.Logger) (*DB, error) {
	info, err := lookupDriver(driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{
		x:       sqlx.NewDb(sqlDB, info.bindName),
		dialect: info.dialect,
		logger:  logger,
	}, nil
}

// Close closes the underlying connection pool
func (d *DB) Close() error { return d.x.Close() }

// Ping verifies the connection is alive
func (d *DB) Ping(ctx context.Context) error { return d.x.PingContext(ctx) }

// Dialect returns the SQL dialect of the connection
func (d *DB) Dialect() Dialect { return d.dialect }

// SQLX exposes the sqlx handle for components that manage their own tables
func (d *DB) SQLX() *sqlx.DB { return d.x }

func (d *DB) get(ctx context.Context, dest any, query string, args ...any) error {
	return ConvertDBError(d.x.GetContext(ctx, dest, d.x.Rebind(query), args...))
}

func (d *DB) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return ConvertDBError(d.x.SelectContext(ctx, dest, d.x.Rebind(query), args...))
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := d.x.ExecContext(ctx, d.x.Rebind(query), args...)
	return res, ConvertDBError(err)
}

// execOne runs a statement that must touch exactly one row
func (d *DB) execOne(ctx context.Context, query string, args ...any) error {
	res, err := d.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back when fn fails
func (d *DB) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.x.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			d.logger.Warn("failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
