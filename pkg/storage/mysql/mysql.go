// Package mysql provides the networked MySQL permissions backend (UseMysql).
package mysql

import (
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/platinummonkey/permissions/pkg/storage"
	"github.com/platinummonkey/permissions/pkg/storage/sqlstore"
)

// Config holds MySQL connection configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Tables   storage.Tables
	Pool     sqlstore.PoolConfig
	Timeout  time.Duration
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("mysql host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mysql database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid mysql port: %d", c.Port)
	}
	return sqlstore.ValidateTables(c.Tables)
}

// DSN renders the driver connection string
func (c Config) DSN() string {
	cfg := driver.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Collation = "utf8mb4_bin"
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	return cfg.FormatDSN()
}

// Open returns a backend on the given server. Call Init before use.
func Open(cfg Config, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := cfg.DSN()
	return sqlstore.New(sqlstore.MySQL, cfg.Tables, func() (*sql.DB, error) {
		db, err := sql.Open(sqlstore.MySQL.DriverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql connection: %w", err)
		}
		cfg.Pool.Apply(db)
		return db, nil
	}, opts...)
}
