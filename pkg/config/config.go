package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/permissions/pkg/commands"
	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/storage"
)

const (
	// DefaultPath is read when no path is given
	DefaultPath = "config.json"

	// MinClusterSyncTime is the smallest accepted resync interval, in seconds
	MinClusterSyncTime = 20
)

// Config holds all daemon configuration. Key names match the plugin's
// config.json so existing files load unchanged.
type Config struct {
	// Storage
	Backend           string `yaml:"Backend"`
	UseMysql          bool   `yaml:"UseMysql"`
	MysqlHost         string `yaml:"MysqlHost"`
	MysqlUser         string `yaml:"MysqlUser"`
	MysqlPass         string `yaml:"MysqlPass"`
	MysqlDB           string `yaml:"MysqlDB"`
	MysqlPort         int    `yaml:"MysqlPort"`
	MysqlPlayersTable string `yaml:"MysqlPlayersTable"`
	MysqlGroupsTable  string `yaml:"MysqlGroupsTable"`
	MysqlTribesTable  string `yaml:"MysqlTribesTable"`
	DbPathOverride    string `yaml:"DbPathOverride"`
	PostgresURL       string `yaml:"PostgresURL"`
	CacheSize         int    `yaml:"CacheSize"`

	// ClusterSyncTime is the resync interval in seconds
	ClusterSyncTime int `yaml:"ClusterSyncTime"`

	// Messages
	HideAllPlayerSuccessMessages bool    `yaml:"HideAllPlayerSuccessMessages"`
	SendMessagesAsNotification   bool    `yaml:"SendMessagesAsNotification"`
	TextSize                     float64 `yaml:"TextSize"`
	DisplayTime                  float64 `yaml:"DisplayTime"`

	// Daemon
	ListenAddr string `yaml:"ListenAddr"`
	RedisURL   string `yaml:"RedisURL"`
	LogLevel   string `yaml:"LogLevel"`
}

// Default returns the configuration used for keys a file leaves out
func Default() *Config {
	tables := storage.DefaultTables()
	return &Config{
		Backend:           "sqlite",
		MysqlPort:         3306,
		MysqlPlayersTable: tables.Players,
		MysqlGroupsTable:  tables.Groups,
		MysqlTribesTable:  tables.Tribes,
		CacheSize:         4096,
		ClusterSyncTime:   60,
		TextSize:          1.5,
		DisplayTime:       3.0,
		ListenAddr:        "127.0.0.1:8085",
		LogLevel:          "info",
	}
}

// Load reads the file at path, applies environment overrides and validates
// the result
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSON or YAML config data on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// decode reads JSON objects with encoding/json, since tab-indented JSON is not
// valid YAML, and everything else as YAML
func decode(data []byte, cfg *Config) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnv lets deployment secrets come from the environment
func (c *Config) applyEnv() {
	c.Backend = getEnv("PERMISSIONS_BACKEND", c.Backend)
	c.MysqlPass = getEnv("PERMISSIONS_MYSQL_PASS", c.MysqlPass)
	c.PostgresURL = getEnv("PERMISSIONS_POSTGRES_URL", c.PostgresURL)
	c.RedisURL = getEnv("PERMISSIONS_REDIS_URL", c.RedisURL)
	c.ListenAddr = getEnv("PERMISSIONS_LISTEN_ADDR", c.ListenAddr)
	c.LogLevel = getEnv("PERMISSIONS_LOG_LEVEL", c.LogLevel)
	c.ClusterSyncTime = getEnvInt("PERMISSIONS_CLUSTER_SYNC_TIME", c.ClusterSyncTime)
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.UseMysql {
		c.Backend = "mysql"
	}
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.ClusterSyncTime < MinClusterSyncTime {
		c.ClusterSyncTime = MinClusterSyncTime
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case "sqlite":
	case "mysql":
		if c.MysqlHost == "" {
			errs = append(errs, fmt.Errorf("MysqlHost is required for mysql backend"))
		}
		if c.MysqlDB == "" {
			errs = append(errs, fmt.Errorf("MysqlDB is required for mysql backend"))
		}
		if c.MysqlPort <= 0 || c.MysqlPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid MysqlPort: %d", c.MysqlPort))
		}
	case "postgres":
		if c.PostgresURL == "" {
			errs = append(errs, fmt.Errorf("PostgresURL is required for postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend: %s (must be sqlite, mysql, or postgres)", c.Backend))
	}

	if c.MysqlPlayersTable == "" || c.MysqlGroupsTable == "" || c.MysqlTribesTable == "" {
		errs = append(errs, fmt.Errorf("table names must not be empty"))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("CacheSize must be positive"))
	}
	if c.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("ListenAddr is required"))
	}
	if c.TextSize <= 0 || c.DisplayTime <= 0 {
		errs = append(errs, fmt.Errorf("TextSize and DisplayTime must be positive"))
	}

	return errors.Join(errs...)
}

// SyncInterval returns ClusterSyncTime as a duration
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.ClusterSyncTime) * time.Second
}

// Level returns the parsed log level
func (c *Config) Level() observability.LogLevel {
	return observability.ParseLogLevel(c.LogLevel)
}

// Tables returns the configured table names
func (c *Config) Tables() storage.Tables {
	return storage.Tables{
		Players: c.MysqlPlayersTable,
		Groups:  c.MysqlGroupsTable,
		Tribes:  c.MysqlTribesTable,
	}
}

// Storage converts the storage keys into a backend configuration
func (c *Config) Storage() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Type = c.Backend
	cfg.SQLitePath = c.DbPathOverride
	cfg.MySQLHost = c.MysqlHost
	cfg.MySQLPort = c.MysqlPort
	cfg.MySQLUser = c.MysqlUser
	cfg.MySQLPassword = c.MysqlPass
	cfg.MySQLDatabase = c.MysqlDB
	cfg.PostgresURL = c.PostgresURL
	cfg.Tables = c.Tables()
	cfg.CacheSize = c.CacheSize
	cfg.CacheTTL = c.SyncInterval()
	return cfg
}

// Messages converts the message keys into dispatcher settings
func (c *Config) Messages() commands.Settings {
	return commands.Settings{
		HideAllPlayerSuccessMessages: c.HideAllPlayerSuccessMessages,
		SendMessagesAsNotification:   c.SendMessagesAsNotification,
		TextSize:                     c.TextSize,
		DisplayTime:                  c.DisplayTime,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
