package sqlstore

import (
	"database/sql"
	"time"
)

// PoolConfig holds connection pool settings for the networked backends
type PoolConfig struct {
	MaxConns    int
	MinConns    int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultPoolConfig returns a small pool; the service issues few concurrent queries
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:    10,
		MinConns:    2,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
}

// Apply configures db with the pool settings
func (p PoolConfig) Apply(db *sql.DB) {
	db.SetMaxOpenConns(p.MaxConns)
	db.SetMaxIdleConns(p.MinConns)
	db.SetConnMaxLifetime(p.MaxLifetime)
	db.SetConnMaxIdleTime(p.MaxIdleTime)
}
