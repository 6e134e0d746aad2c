// Package postgres provides the PostgreSQL permissions backend.
package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/permissions/pkg/storage"
	"github.com/platinummonkey/permissions/pkg/storage/sqlstore"
)

// Config holds PostgreSQL connection configuration
type Config struct {
	URL    string
	Tables storage.Tables
	Pool   sqlstore.PoolConfig
}

// Validate checks the configuration
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if !strings.HasPrefix(c.URL, "postgres://") && !strings.HasPrefix(c.URL, "postgresql://") &&
		!strings.Contains(c.URL, "=") {
		return fmt.Errorf("postgres URL must be a postgres:// URL or a key=value DSN")
	}
	return sqlstore.ValidateTables(c.Tables)
}

// Open returns a backend on the given database. Call Init before use.
func Open(cfg Config, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return sqlstore.New(sqlstore.Postgres, cfg.Tables, opener(cfg), opts...)
}

func opener(cfg Config) sqlstore.Opener {
	return func() (*sql.DB, error) {
		db, err := sql.Open(sqlstore.Postgres.DriverName, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		cfg.Pool.Apply(db)
		return db, nil
	}
}
