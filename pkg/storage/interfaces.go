package storage

import (
	"context"
	"time"
)

// GroupReader exposes read access to groups and their grants
type GroupReader interface {
	GetGroupPermissions(ctx context.Context, group string) ([]string, error)
	GetAllGroups(ctx context.Context) ([]string, error)
	GetGroupMembers(ctx context.Context, group string) ([]string, error)
	IsGroupExists(ctx context.Context, group string) (bool, error)
}

// GroupWriter manages the group lifecycle and permission grants
type GroupWriter interface {
	AddGroup(ctx context.Context, group string) error
	// RemoveGroup deletes the group and every membership and grant referencing it
	RemoveGroup(ctx context.Context, group string) error
	GroupGrantPermission(ctx context.Context, group, permission string) error
	GroupRevokePermission(ctx context.Context, group, permission string) error
}

// PlayerStore manages memberships keyed by player identity
type PlayerStore interface {
	AddPlayer(ctx context.Context, identity string) error
	IsPlayerExists(ctx context.Context, identity string) (bool, error)
	GetPlayerGroups(ctx context.Context, identity string) ([]string, error)
	HydratePlayerGroups(ctx context.Context, identity string) (*CachedPermission, error)
	AddPlayerToGroup(ctx context.Context, identity, group string) error
	RemovePlayerFromGroup(ctx context.Context, identity, group string) error
	AddPlayerToTimedGroup(ctx context.Context, identity, group string, durationSecs, delaySecs int64) error
	RemovePlayerFromTimedGroup(ctx context.Context, identity, group string) error
	UpdatePlayerGroupCallbacks(ctx context.Context, identity string, groups []string) error
}

// TribeStore manages memberships keyed by tribe ID
type TribeStore interface {
	AddTribe(ctx context.Context, tribeID int64) error
	IsTribeExists(ctx context.Context, tribeID int64) (bool, error)
	GetTribeGroups(ctx context.Context, tribeID int64) ([]string, error)
	HydrateTribeGroups(ctx context.Context, tribeID int64) (*CachedPermission, error)
	AddTribeToGroup(ctx context.Context, tribeID int64, group string) error
	RemoveTribeFromGroup(ctx context.Context, tribeID int64, group string) error
	AddTribeToTimedGroup(ctx context.Context, tribeID int64, group string, durationSecs, delaySecs int64) error
	RemoveTribeFromTimedGroup(ctx context.Context, tribeID int64, group string) error
	UpdateTribeGroupCallbacks(ctx context.Context, tribeID int64, groups []string) error
}

// Backend is the full persistence contract used by the permissions service
type Backend interface {
	GroupReader
	GroupWriter
	PlayerStore
	TribeStore

	// Init (re)connects and ensures the schema exists. It is called at load and on
	// every resync tick, and must be safe to call concurrently with other methods.
	Init(ctx context.Context) error

	// Kind names the implementation ("sqlite", "mysql", "postgres")
	Kind() string

	Close() error
}

// Config selects and configures a backend
type Config struct {
	Type string // "sqlite", "mysql", "postgres"

	// SQLite config
	SQLitePath string

	// MySQL config
	MySQLHost     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string

	// PostgreSQL config
	PostgresURL string

	Tables Tables

	// Cache config
	CacheSize int
	CacheTTL  time.Duration
}

// Tables names the three tables the SQL backends use
type Tables struct {
	Players string
	Groups  string
	Tribes  string
}

// DefaultTables returns the table names used when none are configured
func DefaultTables() Tables {
	return Tables{
		Players: "Players",
		Groups:  "PermissionGroups",
		Tribes:  "TribePermissions",
	}
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:       "sqlite",
		SQLitePath: "permissions.db",
		MySQLPort:  3306,
		Tables:     DefaultTables(),
		CacheSize:  4096,
		CacheTTL:   60 * time.Second,
	}
}
