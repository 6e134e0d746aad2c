package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestStore(t *testing.T, clock *fakeClock, opts ...Option) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "permissions.db")
	open := func() (*sql.DB, error) {
		db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return db, nil
	}

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := New(SQLite, storage.DefaultTables(), open, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GroupLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	require.NoError(t, s.AddGroup(ctx, "Admins"))
	require.NoError(t, s.AddGroup(ctx, "VIP"))

	exists, err := s.IsGroupExists(ctx, "VIP")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.IsGroupExists(ctx, "vip")
	require.NoError(t, err)
	assert.False(t, exists, "group names are case-sensitive")

	err = s.AddGroup(ctx, "VIP")
	assert.ErrorIs(t, err, storage.ErrGroupExists)

	groups, err := s.GetAllGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Admins", "VIP"}, groups)

	require.NoError(t, s.RemoveGroup(ctx, "VIP"))
	exists, err = s.IsGroupExists(ctx, "VIP")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, s.RemoveGroup(ctx, "VIP"), storage.ErrGroupNotFound)
}

func TestStore_GrantRevoke(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	require.NoError(t, s.AddGroup(ctx, "VIP"))
	require.NoError(t, s.GroupGrantPermission(ctx, "VIP", "fly"))
	require.NoError(t, s.GroupGrantPermission(ctx, "VIP", "kit"))

	perms, err := s.GetGroupPermissions(ctx, "VIP")
	require.NoError(t, err)
	assert.Equal(t, []string{"fly", "kit"}, perms)

	assert.ErrorIs(t, s.GroupGrantPermission(ctx, "VIP", "fly"), storage.ErrPermissionExists)
	assert.ErrorIs(t, s.GroupGrantPermission(ctx, "Nope", "fly"), storage.ErrGroupNotFound)

	require.NoError(t, s.GroupRevokePermission(ctx, "VIP", "fly"))
	assert.ErrorIs(t, s.GroupRevokePermission(ctx, "VIP", "fly"), storage.ErrPermissionNotFound)

	perms, err = s.GetGroupPermissions(ctx, "VIP")
	require.NoError(t, err)
	assert.Equal(t, []string{"kit"}, perms)

	perms, err = s.GetGroupPermissions(ctx, "Nope")
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestStore_PlayerMembership(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	err := s.AddPlayerToGroup(ctx, "abc123", "VIP")
	assert.ErrorIs(t, err, storage.ErrGroupNotFound)

	exists, err := s.IsPlayerExists(ctx, "abc123")
	require.NoError(t, err)
	assert.False(t, exists, "failed add must not create the player")

	require.NoError(t, s.AddGroup(ctx, "VIP"))
	require.NoError(t, s.AddGroup(ctx, "Builder"))
	require.NoError(t, s.AddPlayerToGroup(ctx, "abc123", "VIP"))
	require.NoError(t, s.AddPlayerToGroup(ctx, "abc123", "Builder"))

	exists, err = s.IsPlayerExists(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, exists)

	groups, err := s.GetPlayerGroups(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"VIP", "Builder"}, groups)

	assert.ErrorIs(t, s.AddPlayerToGroup(ctx, "abc123", "VIP"), storage.ErrAlreadyMember)

	require.NoError(t, s.RemovePlayerFromGroup(ctx, "abc123", "VIP"))
	assert.ErrorIs(t, s.RemovePlayerFromGroup(ctx, "abc123", "VIP"), storage.ErrNotMember)
	assert.ErrorIs(t, s.RemovePlayerFromGroup(ctx, "ghost", "VIP"), storage.ErrPlayerNotFound)

	groups, err = s.GetPlayerGroups(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"Builder"}, groups)

	groups, err = s.GetPlayerGroups(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestStore_AddPlayerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	require.NoError(t, s.AddGroup(ctx, "VIP"))
	require.NoError(t, s.AddPlayerToGroup(ctx, "abc123", "VIP"))
	require.NoError(t, s.AddPlayer(ctx, "abc123"))
	require.NoError(t, s.AddPlayer(ctx, "abc123"))

	groups, err := s.GetPlayerGroups(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, []string{"VIP"}, groups)
}

func TestStore_TimedMembership(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := setupTestStore(t, clock)
	start := clock.Now().Unix()

	require.NoError(t, s.AddGroup(ctx, "VIP"))
	require.NoError(t, s.AddGroup(ctx, "Donor"))

	t.Run("active immediately without delay", func(t *testing.T) {
		require.NoError(t, s.AddPlayerToTimedGroup(ctx, "p1", "VIP", 3600, 0))

		perm, err := s.HydratePlayerGroups(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, perm.TimedGroups, 1)
		assert.Equal(t, storage.TimedGroup{GroupName: "VIP", DelayUntilTime: 0, ExpireAtTime: start + 3600}, perm.TimedGroups[0])

		groups, err := s.GetPlayerGroups(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, []string{"VIP"}, groups)
	})

	t.Run("pending until delay elapses", func(t *testing.T) {
		require.NoError(t, s.AddPlayerToTimedGroup(ctx, "p2", "Donor", 3*3600, 3600))

		perm, err := s.HydratePlayerGroups(ctx, "p2")
		require.NoError(t, err)
		require.Len(t, perm.TimedGroups, 1)
		assert.Equal(t, start+3600, perm.TimedGroups[0].DelayUntilTime)
		assert.Equal(t, start+3*3600, perm.TimedGroups[0].ExpireAtTime)

		groups, err := s.GetPlayerGroups(ctx, "p2")
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	clock.Advance(time.Hour)

	t.Run("expired at boundary", func(t *testing.T) {
		groups, err := s.GetPlayerGroups(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, groups)

		perm, err := s.HydratePlayerGroups(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, perm.TimedGroups)

		assert.ErrorIs(t, s.RemovePlayerFromTimedGroup(ctx, "p1", "VIP"), storage.ErrNotMember)
	})

	t.Run("activates at delay", func(t *testing.T) {
		groups, err := s.GetPlayerGroups(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, []string{"Donor"}, groups)
	})

	t.Run("re-adding replaces", func(t *testing.T) {
		require.NoError(t, s.AddPlayerToTimedGroup(ctx, "p2", "Donor", 60, 0))

		perm, err := s.HydratePlayerGroups(ctx, "p2")
		require.NoError(t, err)
		require.Len(t, perm.TimedGroups, 1)
		assert.Equal(t, clock.Now().Unix()+60, perm.TimedGroups[0].ExpireAtTime)
		assert.Zero(t, perm.TimedGroups[0].DelayUntilTime)
	})

	t.Run("remove timed", func(t *testing.T) {
		require.NoError(t, s.RemovePlayerFromTimedGroup(ctx, "p2", "Donor"))
		groups, err := s.GetPlayerGroups(ctx, "p2")
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("negative duration rejected", func(t *testing.T) {
		assert.ErrorIs(t, s.AddPlayerToTimedGroup(ctx, "p3", "VIP", -1, 0), storage.ErrInvalidDuration)
		exists, err := s.IsPlayerExists(ctx, "p3")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("missing group", func(t *testing.T) {
		assert.ErrorIs(t, s.AddPlayerToTimedGroup(ctx, "p1", "Nope", 60, 0), storage.ErrGroupNotFound)
	})
}

func TestStore_StaticAndTimedDedup(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	require.NoError(t, s.AddGroup(ctx, "VIP"))
	require.NoError(t, s.AddGroup(ctx, "Donor"))
	require.NoError(t, s.AddPlayerToGroup(ctx, "p1", "VIP"))
	require.NoError(t, s.AddPlayerToTimedGroup(ctx, "p1", "Donor", 60, 0))
	require.NoError(t, s.AddPlayerToTimedGroup(ctx, "p1", "VIP", 60, 0))

	groups, err := s.GetPlayerGroups(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"VIP", "Donor"}, groups)
}

func TestStore_RemoveGroupCascades(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	for _, g := range []string{"VIP", "VIP2", "Builder"} {
		require.NoError(t, s.AddGroup(ctx, g))
	}
	require.NoError(t, s.GroupGrantPermission(ctx, "VIP", "fly"))
	require.NoError(t, s.AddPlayerToGroup(ctx, "p1", "VIP"))
	require.NoError(t, s.AddPlayerToGroup(ctx, "p1", "VIP2"))
	require.NoError(t, s.AddPlayerToTimedGroup(ctx, "p1", "VIP", 3600, 0))
	require.NoError(t, s.AddPlayerToTimedGroup(ctx, "p1", "Builder", 3600, 0))
	require.NoError(t, s.AddTribeToGroup(ctx, 555, "VIP"))
	require.NoError(t, s.AddTribeToTimedGroup(ctx, 555, "VIP", 3600, 600))

	require.NoError(t, s.RemoveGroup(ctx, "VIP"))

	groups, err := s.GetPlayerGroups(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"VIP2", "Builder"}, groups)

	perm, err := s.HydratePlayerGroups(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, perm.TimedGroups, 1)
	assert.Equal(t, "Builder", perm.TimedGroups[0].GroupName)

	tribe, err := s.HydrateTribeGroups(ctx, 555)
	require.NoError(t, err)
	assert.Empty(t, tribe.Groups)
	assert.Empty(t, tribe.TimedGroups)

	perms, err := s.GetGroupPermissions(ctx, "VIP")
	require.NoError(t, err)
	assert.Empty(t, perms)

	// Recreating the group must not resurrect old grants or memberships
	require.NoError(t, s.AddGroup(ctx, "VIP"))
	perms, err = s.GetGroupPermissions(ctx, "VIP")
	require.NoError(t, err)
	assert.Empty(t, perms)
	members, err := s.GetGroupMembers(ctx, "VIP")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestStore_RemoveGroupWithSpecialCharacters(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	names := []string{`<VIP>`, `a"b`, `100%_off!`, `back\slash`}
	for _, g := range names {
		require.NoError(t, s.AddGroup(ctx, g))
		require.NoError(t, s.AddPlayerToGroup(ctx, "p1", g))
		require.NoError(t, s.AddTribeToTimedGroup(ctx, 555, g, 3600, 0))
	}
	require.NoError(t, s.AddGroup(ctx, "100x_off!"))
	require.NoError(t, s.AddPlayerToGroup(ctx, "p2", "100x_off!"))

	members, err := s.GetGroupMembers(ctx, `100%_off!`)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, members)

	for _, g := range names {
		require.NoError(t, s.RemoveGroup(ctx, g))
	}

	groups, err := s.GetPlayerGroups(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, groups)

	tribe, err := s.HydrateTribeGroups(ctx, 555)
	require.NoError(t, err)
	assert.Empty(t, tribe.TimedGroups)

	groups, err = s.GetPlayerGroups(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, []string{"100x_off!"}, groups)
}

func TestStore_GetGroupMembers(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := setupTestStore(t, clock)

	require.NoError(t, s.AddGroup(ctx, "VIP"))
	require.NoError(t, s.AddGroup(ctx, "VIP2"))
	require.NoError(t, s.AddPlayerToGroup(ctx, "static", "VIP"))
	require.NoError(t, s.AddPlayerToTimedGroup(ctx, "timed", "VIP", 3600, 0))
	require.NoError(t, s.AddPlayerToTimedGroup(ctx, "pending", "VIP", 7200, 3600))
	require.NoError(t, s.AddPlayerToGroup(ctx, "other", "VIP2"))

	members, err := s.GetGroupMembers(ctx, "VIP")
	require.NoError(t, err)
	assert.Equal(t, []string{"static", "timed"}, members)
}

func TestStore_TribeMembership(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	require.NoError(t, s.AddGroup(ctx, "Raiders"))

	exists, err := s.IsTribeExists(ctx, 555)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.AddTribe(ctx, 555))
	exists, err = s.IsTribeExists(ctx, 555)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.AddTribeToGroup(ctx, 555, "Raiders"))
	assert.ErrorIs(t, s.AddTribeToGroup(ctx, 555, "Raiders"), storage.ErrAlreadyMember)

	groups, err := s.GetTribeGroups(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, []string{"Raiders"}, groups)

	require.NoError(t, s.RemoveTribeFromGroup(ctx, 555, "Raiders"))
	assert.ErrorIs(t, s.RemoveTribeFromGroup(ctx, 556, "Raiders"), storage.ErrTribeNotFound)

	require.NoError(t, s.AddTribeToTimedGroup(ctx, 555, "Raiders", 3600, 0))
	groups, err = s.GetTribeGroups(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, []string{"Raiders"}, groups)

	require.NoError(t, s.RemoveTribeFromTimedGroup(ctx, 555, "Raiders"))
	groups, err = s.GetTribeGroups(ctx, 555)
	require.NoError(t, err)
	assert.Empty(t, groups)

	_, err = s.HydrateTribeGroups(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrTribeNotFound)
}

func TestStore_CallbackResults(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := setupTestStore(t, clock)

	err := s.UpdatePlayerGroupCallbacks(ctx, "xyz", []string{"Donor"})
	assert.ErrorIs(t, err, storage.ErrPlayerNotFound)

	require.NoError(t, s.AddPlayer(ctx, "xyz"))

	perm, err := s.HydratePlayerGroups(ctx, "xyz")
	require.NoError(t, err)
	assert.False(t, perm.HasCheckedCallbacks)

	require.NoError(t, s.UpdatePlayerGroupCallbacks(ctx, "xyz", []string{"Donor"}))

	perm, err = s.HydratePlayerGroups(ctx, "xyz")
	require.NoError(t, err)
	assert.True(t, perm.HasCheckedCallbacks)
	assert.Equal(t, []string{"Donor"}, perm.CallbackGroups)

	// A resync starts a new generation even when the clock has not moved
	require.NoError(t, s.Init(ctx))

	perm, err = s.HydratePlayerGroups(ctx, "xyz")
	require.NoError(t, err)
	assert.False(t, perm.HasCheckedCallbacks)
	assert.Equal(t, []string{"Donor"}, perm.CallbackGroups)

	require.NoError(t, s.AddTribe(ctx, 7))
	require.NoError(t, s.UpdateTribeGroupCallbacks(ctx, 7, []string{"Alliance"}))
	tribe, err := s.HydrateTribeGroups(ctx, 7)
	require.NoError(t, err)
	assert.True(t, tribe.HasCheckedCallbacks)
	assert.Equal(t, []string{"Alliance"}, tribe.CallbackGroups)
}

func TestStore_InitReopensDeadHandle(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())

	require.NoError(t, s.AddGroup(ctx, "VIP"))
	require.NoError(t, s.DB().Close())

	require.NoError(t, s.Init(ctx))

	exists, err := s.IsGroupExists(ctx, "VIP")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s := setupTestStore(t, newFakeClock(), WithMetrics(metrics))

	require.NoError(t, s.AddGroup(ctx, "VIP"))
	assert.Error(t, s.AddGroup(ctx, "VIP"))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BackendOperationsTotal.WithLabelValues("AddGroup", "sqlite", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BackendOperationsTotal.WithLabelValues("AddGroup", "sqlite", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BackendOperationsTotal.WithLabelValues("Init", "sqlite", "success")))
}

func TestStore_ConcurrentInitAndWrites(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, newFakeClock())
	require.NoError(t, s.AddGroup(ctx, "VIP"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Init(ctx))
		}()
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AddPlayerToGroup(ctx, "p"+string(rune('a'+i)), "VIP"))
		}(i)
	}
	wg.Wait()

	members, err := s.GetGroupMembers(ctx, "VIP")
	require.NoError(t, err)
	assert.Len(t, members, 10)
}

func TestNew_RejectsBadTables(t *testing.T) {
	tables := storage.DefaultTables()
	tables.Players = "Players; DROP TABLE x"

	_, err := New(SQLite, tables, func() (*sql.DB, error) { return nil, nil })
	assert.Error(t, err)
}
