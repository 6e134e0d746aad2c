package sqlstore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/platinummonkey/permissions/pkg/storage"
)

// PlaceholderStyle selects how bind parameters are written
type PlaceholderStyle int

const (
	// Question uses "?" (SQLite, MySQL)
	Question PlaceholderStyle = iota
	// Dollar uses "$1", "$2", ... (PostgreSQL)
	Dollar
)

// Dialect captures the SQL differences between the supported databases
type Dialect struct {
	// Name is reported as the backend kind
	Name string
	// DriverName is passed to sql.Open
	DriverName string

	Placeholders PlaceholderStyle

	// IDColumn is the full definition of the surrogate primary key column
	IDColumn string
	// TableOptions is appended after the column list of CREATE TABLE
	TableOptions string

	// InsertIgnorePrefix/Suffix wrap an INSERT so a unique-key conflict is a no-op
	InsertIgnorePrefix string
	InsertIgnoreSuffix string

	// KeyCollation is appended to the case-sensitive key columns
	KeyCollation string

	// LockSuffix is appended to a SELECT that reads a row about to be rewritten
	LockSuffix string
}

var (
	SQLite = Dialect{
		Name:               "sqlite",
		DriverName:         "sqlite3",
		Placeholders:       Question,
		IDColumn:           "id INTEGER PRIMARY KEY AUTOINCREMENT",
		InsertIgnorePrefix: "INSERT OR IGNORE INTO",
	}

	MySQL = Dialect{
		Name:               "mysql",
		DriverName:         "mysql",
		Placeholders:       Question,
		IDColumn:           "id INT NOT NULL AUTO_INCREMENT PRIMARY KEY",
		TableOptions:       " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		KeyCollation:       " COLLATE utf8mb4_bin",
		InsertIgnorePrefix: "INSERT IGNORE INTO",
		LockSuffix:         " FOR UPDATE",
	}

	Postgres = Dialect{
		Name:               "postgres",
		DriverName:         "postgres",
		Placeholders:       Dollar,
		IDColumn:           "id BIGSERIAL PRIMARY KEY",
		InsertIgnorePrefix: "INSERT INTO",
		InsertIgnoreSuffix: " ON CONFLICT DO NOTHING",
		LockSuffix:         " FOR UPDATE",
	}
)

// Rebind rewrites "?" placeholders into the dialect's style
func (d Dialect) Rebind(query string) string {
	if d.Placeholders != Dollar {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Schema returns the idempotent DDL for the three tables
func (d Dialect) Schema(t storage.Tables) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	eos_id VARCHAR(128)%s NOT NULL UNIQUE,
	permission_groups TEXT NOT NULL,
	timed_permission_groups TEXT NOT NULL,
	callback_groups TEXT NOT NULL,
	callbacks_checked_at BIGINT NOT NULL DEFAULT 0
)%s`, t.Players, d.IDColumn, d.KeyCollation, d.TableOptions),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	group_name VARCHAR(128)%s NOT NULL UNIQUE,
	permissions TEXT NOT NULL
)%s`, t.Groups, d.IDColumn, d.KeyCollation, d.TableOptions),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	tribe_id BIGINT NOT NULL UNIQUE,
	permission_groups TEXT NOT NULL,
	timed_permission_groups TEXT NOT NULL,
	callback_groups TEXT NOT NULL,
	callbacks_checked_at BIGINT NOT NULL DEFAULT 0
)%s`, t.Tribes, d.IDColumn, d.TableOptions),
	}
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateTables rejects table names that cannot be safely interpolated into SQL
func ValidateTables(t storage.Tables) error {
	for _, name := range []string{t.Players, t.Groups, t.Tribes} {
		if !tableName.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	if t.Players == t.Groups || t.Players == t.Tribes || t.Groups == t.Tribes {
		return fmt.Errorf("table names must be distinct")
	}
	return nil
}
