package store

import (
	"context"
	"fmt"
	"regexp"
	"slices"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// redactedColumns are masked in every table browser row
var redactedColumns = map[string]bool{"password_hash": true}

// hiddenTables are bookkeeping tables omitted from the browser
var hiddenTables = map[string]bool{"schema_migrations": true}

// ListTables returns user-visible table names in alphabetical order
func (d *DB) ListTables(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	if d.dialect == DialectPostgres {
		query = `SELECT table_name FROM information_schema.tables
WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`
	}

	var names []string
	if err := d.selectAll(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]string, 0, len(names))
	for _, n := range names {
		if !hiddenTables[n] {
			tables = append(tables, n)
		}
	}
	return tables, nil
}

// checkTable returns ErrNotFound unless table is a visible table
func (d *DB) checkTable(ctx context.Context, table string) error {
	if !tableNamePattern.MatchString(table) {
		return ErrNotFound
	}
	tables, err := d.ListTables(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(tables, table) {
		return ErrNotFound
	}
	return nil
}

// eachRow scans every row of query into a column map, redacting secrets and
// turning byte slices into strings
func (d *DB) eachRow(ctx context.Context, fn func(map[string]any) error, query string, args ...any) error {
	rows, err := d.x.QueryxContext(ctx, d.x.Rebind(query), args...)
	if err != nil {
		return ConvertDBError(err)
	}
	defer rows.Close()

	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		for k, v := range row {
			if redactedColumns[k] {
				row[k] = "[redacted]"
				continue
			}
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	return nil
}

// TableRows returns up to limit rows of table as column maps.
// Unknown or malformed table names yield ErrNotFound.
func (d *DB) TableRows(ctx context.Context, table string, limit, offset int) ([]map[string]any, error) {
	if err := d.checkTable(ctx, table); err != nil {
		return nil, err
	}
	data := []map[string]any{}
	err := d.eachRow(ctx, func(row map[string]any) error {
		data = append(data, row)
		return nil
	}, fmt.Sprintf(`SELECT * FROM "%s" LIMIT ? OFFSET ?`, table), limit, offset)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// EachTableRow calls fn for every row of table until fn returns an error
func (d *DB) EachTableRow(ctx context.Context, table string, fn func(map[string]any) error) error {
	if err := d.checkTable(ctx, table); err != nil {
		return err
	}
	return d.eachRow(ctx, fn, fmt.Sprintf(`SELECT * FROM "%s"`, table))
}
