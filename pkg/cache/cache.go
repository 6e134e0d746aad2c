package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/storage"
)

// groupEntry caches one group; exists is false for a missing group
type groupEntry struct {
	exists bool
	perms  []string
}

// Stats holds cache statistics
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Players int   `json:"players"`
	Tribes  int   `json:"tribes"`
	Groups  int   `json:"groups"`
}

// Store is a caching storage.Backend
type Store struct {
	backend storage.Backend
	players *lru.LRU[string, *storage.CachedPermission]
	tribes  *lru.LRU[int64, *storage.CachedPermission]
	groups  *lru.LRU[string, groupEntry]
	metrics *observability.Metrics

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps backend. size bounds each of the three caches; ttl bounds the age of an entry.
func New(backend storage.Backend, size int, ttl time.Duration, metrics *observability.Metrics) *Store {
	if size < 16 {
		size = 16
	}

	return &Store{
		backend: backend,
		players: lru.NewLRU[string, *storage.CachedPermission](size, nil, ttl),
		tribes:  lru.NewLRU[int64, *storage.CachedPermission](size, nil, ttl),
		groups:  lru.NewLRU[string, groupEntry](size, nil, ttl),
		metrics: metrics,
	}
}

func (s *Store) record(cache string, hit bool) {
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	s.metrics.CacheHit(cache, hit)
}

// Stats returns hit/miss counters and entry counts
func (s *Store) Stats() Stats {
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Players: s.players.Len(),
		Tribes:  s.tribes.Len(),
		Groups:  s.groups.Len(),
	}
}

// Invalidate drops the cached snapshot of a player and/or tribe. An empty
// identity or a zero tribe ID is ignored.
func (s *Store) Invalidate(identity string, tribeID int64) {
	if identity != "" {
		s.players.Remove(identity)
	}
	if tribeID != 0 {
		s.tribes.Remove(tribeID)
	}
}

// InvalidateGroup drops the cached permission list of group
func (s *Store) InvalidateGroup(group string) {
	s.groups.Remove(group)
}

// Purge drops every cached entry
func (s *Store) Purge() {
	s.players.Purge()
	s.tribes.Purge()
	s.groups.Purge()
}

// Init re-initializes the backend and starts from an empty cache
func (s *Store) Init(ctx context.Context) error {
	err := s.backend.Init(ctx)
	s.Purge()
	return err
}

// Kind reports the wrapped backend kind
func (s *Store) Kind() string {
	return s.backend.Kind()
}

// Close closes the wrapped backend
func (s *Store) Close() error {
	s.Purge()
	return s.backend.Close()
}

func (s *Store) group(ctx context.Context, group string) (groupEntry, error) {
	if entry, ok := s.groups.Get(group); ok {
		s.record("groups", true)
		return entry, nil
	}
	s.record("groups", false)

	exists, err := s.backend.IsGroupExists(ctx, group)
	if err != nil {
		return groupEntry{}, err
	}
	entry := groupEntry{exists: exists, perms: []string{}}
	if exists {
		if entry.perms, err = s.backend.GetGroupPermissions(ctx, group); err != nil {
			return groupEntry{}, err
		}
	}
	s.groups.Add(group, entry)
	return entry, nil
}

// GetGroupPermissions serves the permission list from cache
func (s *Store) GetGroupPermissions(ctx context.Context, group string) ([]string, error) {
	entry, err := s.group(ctx, group)
	if err != nil {
		return nil, err
	}
	return append([]string{}, entry.perms...), nil
}

// IsGroupExists serves group existence from cache
func (s *Store) IsGroupExists(ctx context.Context, group string) (bool, error) {
	entry, err := s.group(ctx, group)
	if err != nil {
		return false, err
	}
	return entry.exists, nil
}

func (s *Store) GetAllGroups(ctx context.Context) ([]string, error) {
	return s.backend.GetAllGroups(ctx)
}

func (s *Store) GetGroupMembers(ctx context.Context, group string) ([]string, error) {
	return s.backend.GetGroupMembers(ctx, group)
}

func (s *Store) AddGroup(ctx context.Context, group string) error {
	defer s.InvalidateGroup(group)
	return s.backend.AddGroup(ctx, group)
}

// RemoveGroup cascades into memberships, so every snapshot is dropped
func (s *Store) RemoveGroup(ctx context.Context, group string) error {
	defer s.Purge()
	return s.backend.RemoveGroup(ctx, group)
}

func (s *Store) GroupGrantPermission(ctx context.Context, group, permission string) error {
	defer s.InvalidateGroup(group)
	return s.backend.GroupGrantPermission(ctx, group, permission)
}

func (s *Store) GroupRevokePermission(ctx context.Context, group, permission string) error {
	defer s.InvalidateGroup(group)
	return s.backend.GroupRevokePermission(ctx, group, permission)
}

func (s *Store) AddPlayer(ctx context.Context, identity string) error {
	defer s.Invalidate(identity, 0)
	return s.backend.AddPlayer(ctx, identity)
}

func (s *Store) IsPlayerExists(ctx context.Context, identity string) (bool, error) {
	if _, ok := s.players.Peek(identity); ok {
		return true, nil
	}
	return s.backend.IsPlayerExists(ctx, identity)
}

// GetPlayerGroups always reads the backend
func (s *Store) GetPlayerGroups(ctx context.Context, identity string) ([]string, error) {
	return s.backend.GetPlayerGroups(ctx, identity)
}

// HydratePlayerGroups serves the snapshot from cache. The returned value is a copy.
func (s *Store) HydratePlayerGroups(ctx context.Context, identity string) (*storage.CachedPermission, error) {
	if perm, ok := s.players.Get(identity); ok {
		s.record("players", true)
		return clone(perm), nil
	}
	s.record("players", false)

	perm, err := s.backend.HydratePlayerGroups(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.players.Add(identity, perm)
	return clone(perm), nil
}

func (s *Store) AddPlayerToGroup(ctx context.Context, identity, group string) error {
	defer s.Invalidate(identity, 0)
	return s.backend.AddPlayerToGroup(ctx, identity, group)
}

func (s *Store) RemovePlayerFromGroup(ctx context.Context, identity, group string) error {
	defer s.Invalidate(identity, 0)
	return s.backend.RemovePlayerFromGroup(ctx, identity, group)
}

func (s *Store) AddPlayerToTimedGroup(ctx context.Context, identity, group string, durationSecs, delaySecs int64) error {
	defer s.Invalidate(identity, 0)
	return s.backend.AddPlayerToTimedGroup(ctx, identity, group, durationSecs, delaySecs)
}

func (s *Store) RemovePlayerFromTimedGroup(ctx context.Context, identity, group string) error {
	defer s.Invalidate(identity, 0)
	return s.backend.RemovePlayerFromTimedGroup(ctx, identity, group)
}

func (s *Store) UpdatePlayerGroupCallbacks(ctx context.Context, identity string, groups []string) error {
	defer s.Invalidate(identity, 0)
	return s.backend.UpdatePlayerGroupCallbacks(ctx, identity, groups)
}

func (s *Store) AddTribe(ctx context.Context, tribeID int64) error {
	defer s.Invalidate("", tribeID)
	return s.backend.AddTribe(ctx, tribeID)
}

func (s *Store) IsTribeExists(ctx context.Context, tribeID int64) (bool, error) {
	if _, ok := s.tribes.Peek(tribeID); ok {
		return true, nil
	}
	return s.backend.IsTribeExists(ctx, tribeID)
}

// GetTribeGroups always reads the backend
func (s *Store) GetTribeGroups(ctx context.Context, tribeID int64) ([]string, error) {
	return s.backend.GetTribeGroups(ctx, tribeID)
}

// HydrateTribeGroups serves the snapshot from cache. The returned value is a copy.
func (s *Store) HydrateTribeGroups(ctx context.Context, tribeID int64) (*storage.CachedPermission, error) {
	if perm, ok := s.tribes.Get(tribeID); ok {
		s.record("tribes", true)
		return clone(perm), nil
	}
	s.record("tribes", false)

	perm, err := s.backend.HydrateTribeGroups(ctx, tribeID)
	if err != nil {
		return nil, err
	}
	s.tribes.Add(tribeID, perm)
	return clone(perm), nil
}

func (s *Store) AddTribeToGroup(ctx context.Context, tribeID int64, group string) error {
	defer s.Invalidate("", tribeID)
	return s.backend.AddTribeToGroup(ctx, tribeID, group)
}

func (s *Store) RemoveTribeFromGroup(ctx context.Context, tribeID int64, group string) error {
	defer s.Invalidate("", tribeID)
	return s.backend.RemoveTribeFromGroup(ctx, tribeID, group)
}

func (s *Store) AddTribeToTimedGroup(ctx context.Context, tribeID int64, group string, durationSecs, delaySecs int64) error {
	defer s.Invalidate("", tribeID)
	return s.backend.AddTribeToTimedGroup(ctx, tribeID, group, durationSecs, delaySecs)
}

func (s *Store) RemoveTribeFromTimedGroup(ctx context.Context, tribeID int64, group string) error {
	defer s.Invalidate("", tribeID)
	return s.backend.RemoveTribeFromTimedGroup(ctx, tribeID, group)
}

func (s *Store) UpdateTribeGroupCallbacks(ctx context.Context, tribeID int64, groups []string) error {
	defer s.Invalidate("", tribeID)
	return s.backend.UpdateTribeGroupCallbacks(ctx, tribeID, groups)
}

func clone(perm *storage.CachedPermission) *storage.CachedPermission {
	return &storage.CachedPermission{
		Groups:              append([]string{}, perm.Groups...),
		TimedGroups:         append([]storage.TimedGroup{}, perm.TimedGroups...),
		CallbackGroups:      append([]string{}, perm.CallbackGroups...),
		HasCheckedCallbacks: perm.HasCheckedCallbacks,
	}
}

var _ storage.Backend = (*Store)(nil)
