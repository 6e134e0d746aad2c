package sqlstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/permissions/pkg/storage"
)

func TestDialect_Rebind(t *testing.T) {
	query := "UPDATE t SET a = ?, b = ? WHERE c = ?"

	assert.Equal(t, query, SQLite.Rebind(query))
	assert.Equal(t, query, MySQL.Rebind(query))
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE c = $3", Postgres.Rebind(query))
}

func TestDialect_Schema(t *testing.T) {
	tables := storage.DefaultTables()

	for _, d := range []Dialect{SQLite, MySQL, Postgres} {
		stmts := d.Schema(tables)
		assert.Len(t, stmts, 3, d.Name)
		assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS Players")
		assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS PermissionGroups")
		assert.Contains(t, stmts[2], "CREATE TABLE IF NOT EXISTS TribePermissions")
	}

	assert.True(t, strings.HasSuffix(MySQL.Schema(tables)[0], "CHARSET=utf8mb4"))
	assert.Contains(t, MySQL.Schema(tables)[1], "group_name VARCHAR(128) COLLATE utf8mb4_bin")
	assert.Contains(t, Postgres.Schema(tables)[2], "BIGSERIAL")
}

func TestValidateTables(t *testing.T) {
	tests := []struct {
		name    string
		tables  storage.Tables
		wantErr bool
	}{
		{"defaults", storage.DefaultTables(), false},
		{"custom", storage.Tables{Players: "ark_players", Groups: "ark_groups", Tribes: "ark_tribes"}, false},
		{"empty", storage.Tables{Players: "", Groups: "g", Tribes: "t"}, true},
		{"injection", storage.Tables{Players: "p`; --", Groups: "g", Tribes: "t"}, true},
		{"duplicate", storage.Tables{Players: "p", Groups: "p", Tribes: "t"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTables(tt.tables)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%"VIP"%`, likePattern("VIP"))
	assert.Equal(t, `%"say \"hi\""%`, likePattern(`say "hi"`))
	assert.Equal(t, `%"\u003cVIP!_1\u003e"%`, likePattern("<VIP_1>"))
	assert.Equal(t, `%"100!% off!!"%`, likePattern("100% off!"))
}

func TestLikeClause_DeclaresEscape(t *testing.T) {
	assert.Equal(t, 2, strings.Count(likeClause, "ESCAPE '!'"))
	assert.Equal(t, "permission_groups LIKE $1 ESCAPE '!' OR timed_permission_groups LIKE $2 ESCAPE '!'",
		Postgres.Rebind(likeClause))
}
