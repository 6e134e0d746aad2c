// Package sqlite provides the embedded-file permissions backend, the default
// when UseMysql is off.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/permissions/pkg/storage"
	"github.com/platinummonkey/permissions/pkg/storage/sqlstore"
)

// DefaultFile is used when no DbPathOverride is configured
const DefaultFile = "permissions.db"

// ResolvePath returns override when set, otherwise DefaultFile inside dir
func ResolvePath(override, dir string) string {
	if override != "" {
		return override
	}
	return filepath.Join(dir, DefaultFile)
}

// DSN returns the driver connection string for path
func DSN(path string) string {
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "on")
	return "file:" + path + "?" + params.Encode()
}

// Open returns a backend on the file at path, creating its directory if needed.
// Call Init before use.
func Open(path string, tables storage.Tables, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := DSN(path)
	return sqlstore.New(sqlstore.SQLite, tables, func() (*sql.DB, error) {
		db, err := sql.Open(sqlstore.SQLite.DriverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// A single connection serializes writers and keeps the WAL file consistent
		db.SetMaxOpenConns(1)
		return db, nil
	}, opts...)
}
