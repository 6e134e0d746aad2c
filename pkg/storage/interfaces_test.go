package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDefaultConfig tests the DefaultConfig function
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, "permissions.db", cfg.SQLitePath)
	assert.Equal(t, 3306, cfg.MySQLPort)
	assert.Equal(t, 4096, cfg.CacheSize)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL)
	assert.Equal(t, "Players", cfg.Tables.Players)
	assert.Equal(t, "PermissionGroups", cfg.Tables.Groups)
	assert.Equal(t, "TribePermissions", cfg.Tables.Tribes)
}

func TestTimedGroup_States(t *testing.T) {
	const now = int64(1_700_000_000)

	tests := []struct {
		name    string
		group   TimedGroup
		pending bool
		active  bool
		expired bool
	}{
		{
			name:   "active without delay",
			group:  TimedGroup{GroupName: "VIP", ExpireAtTime: now + 3600},
			active: true,
		},
		{
			name:    "pending while delay in future",
			group:   TimedGroup{GroupName: "VIP", DelayUntilTime: now + 3600, ExpireAtTime: now + 3*3600},
			pending: true,
		},
		{
			name:   "active once delay elapsed",
			group:  TimedGroup{GroupName: "VIP", DelayUntilTime: now - 1, ExpireAtTime: now + 3600},
			active: true,
		},
		{
			name:    "expired at boundary",
			group:   TimedGroup{GroupName: "VIP", ExpireAtTime: now},
			expired: true,
		},
		{
			name:    "expired even if delay in future",
			group:   TimedGroup{GroupName: "VIP", DelayUntilTime: now + 10, ExpireAtTime: now - 10},
			expired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pending, tt.group.IsPending(now))
			assert.Equal(t, tt.active, tt.group.IsActive(now))
			assert.Equal(t, tt.expired, tt.group.IsExpired(now))
		})
	}
}

func TestCachedPermission_ActiveGroups(t *testing.T) {
	const now = int64(1_700_000_000)

	perm := &CachedPermission{
		Groups: []string{"Default", "VIP"},
		TimedGroups: []TimedGroup{
			{GroupName: "VIP", ExpireAtTime: now + 60},
			{GroupName: "Donor", ExpireAtTime: now + 60},
			{GroupName: "Soon", DelayUntilTime: now + 30, ExpireAtTime: now + 60},
			{GroupName: "Gone", ExpireAtTime: now - 60},
		},
	}

	assert.Equal(t, []string{"Default", "VIP", "Donor"}, perm.ActiveGroups(now))

	var nilPerm *CachedPermission
	assert.Nil(t, nilPerm.ActiveGroups(now))
}

func TestAppendUniqueAndRemove(t *testing.T) {
	groups := AppendUnique(nil, "a", "b", "a", "c", "b")
	assert.Equal(t, []string{"a", "b", "c"}, groups)
	assert.True(t, Contains(groups, "b"))
	assert.False(t, Contains(groups, "B"))

	assert.Equal(t, []string{"a", "c"}, Remove(groups, "b"))
	assert.Equal(t, []string{"a", "b", "c"}, groups)
}
