package store

import (
	"fmt"
	"strings"
)

// Dialect identifies the SQL flavour behind a driver
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverInfo maps a database/sql driver name to its dialect and the sqlx bind name
type driverInfo struct {
	dialect  Dialect
	bindName string
}

var drivers = map[string]driverInfo{
	"sqlite":   {dialect: DialectSQLite, bindName: "sqlite3"},
	"sqlite3":  {dialect: DialectSQLite, bindName: "sqlite3"},
	"pgx":      {dialect: DialectPostgres, bindName: "pgx"},
	"postgres": {dialect: DialectPostgres, bindName: "postgres"},
}

func lookupDriver(name string) (driverInfo, error) {
	info, ok := drivers[name]
	if !ok {
		return driverInfo{}, fmt.Errorf("unsupported database driver: %s", name)
	}
	return info, nil
}

// sqliteDSN turns a bare file path into a DSN with the pragmas dz relies on.
// DSNs that already carry a query string are left alone.
func sqliteDSN(driver, path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	if driver == "sqlite3" {
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
}
