package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/permissions/pkg/storage"
)

// record is one decoded row of a membership table
type record struct {
	groups    []string
	timed     []storage.TimedGroup
	callbacks []string
	checkedAt int64
}

func (r *record) snapshot(now, generation int64) *storage.CachedPermission {
	perm := &storage.CachedPermission{
		Groups:              append([]string{}, r.groups...),
		TimedGroups:         []storage.TimedGroup{},
		CallbackGroups:      append([]string{}, r.callbacks...),
		HasCheckedCallbacks: r.checkedAt > 0 && r.checkedAt >= generation,
	}
	for _, tg := range r.timed {
		if !tg.IsExpired(now) {
			perm.TimedGroups = append(perm.TimedGroups, tg)
		}
	}
	return perm
}

func (r *record) hasTimed(group string, now int64) bool {
	for _, tg := range r.timed {
		if tg.GroupName == group && !tg.IsExpired(now) {
			return true
		}
	}
	return false
}

func (r *record) removeTimed(group string) {
	kept := r.timed[:0:0]
	for _, tg := range r.timed {
		if tg.GroupName != group {
			kept = append(kept, tg)
		}
	}
	r.timed = kept
}

// load reads the row for key; a nil record means the subject does not exist
func (s *Store) load(ctx context.Context, q queryer, subj subject, key interface{}, lock bool) (*record, error) {
	query := fmt.Sprintf(`SELECT permission_groups, timed_permission_groups, callback_groups, callbacks_checked_at
		FROM %s WHERE %s = ?`, subj.table, subj.key)
	if lock {
		query += s.dialect.LockSuffix
	}

	var rawGroups, rawTimed, rawCallbacks string
	var rec record
	err := q.QueryRowContext(ctx, s.q(query), key).Scan(&rawGroups, &rawTimed, &rawCallbacks, &rec.checkedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %v: %w", subj.key, key, err)
	}

	if rec.groups, err = decodeList(rawGroups); err != nil {
		return nil, err
	}
	if rec.timed, err = decodeTimed(rawTimed); err != nil {
		return nil, err
	}
	if rec.callbacks, err = decodeList(rawCallbacks); err != nil {
		return nil, err
	}
	return &rec, nil
}

// insert creates an empty row for key unless one exists
func (s *Store) insert(ctx context.Context, e execer, subj subject, key interface{}) error {
	query := s.q(fmt.Sprintf(
		`%s %s (%s, permission_groups, timed_permission_groups, callback_groups, callbacks_checked_at) VALUES (?, ?, ?, ?, ?)%s`,
		s.dialect.InsertIgnorePrefix, subj.table, subj.key, s.dialect.InsertIgnoreSuffix))

	if _, err := e.ExecContext(ctx, query, key, "[]", "[]", "[]", 0); err != nil {
		return fmt.Errorf("failed to add %s %v: %w", subj.key, key, err)
	}
	return nil
}

// save rewrites the row for key, dropping expired timed memberships
func (s *Store) save(ctx context.Context, tx *sql.Tx, subj subject, key interface{}, rec *record, now int64) error {
	kept := rec.timed[:0:0]
	for _, tg := range rec.timed {
		if !tg.IsExpired(now) {
			kept = append(kept, tg)
		}
	}

	rawGroups, err := encodeList(rec.groups)
	if err != nil {
		return err
	}
	rawTimed, err := encodeTimed(kept)
	if err != nil {
		return err
	}
	rawCallbacks, err := encodeList(rec.callbacks)
	if err != nil {
		return err
	}

	query := s.q(fmt.Sprintf(`UPDATE %s
		SET permission_groups = ?, timed_permission_groups = ?, callback_groups = ?, callbacks_checked_at = ?
		WHERE %s = ?`, subj.table, subj.key))
	if _, err := tx.ExecContext(ctx, query, rawGroups, rawTimed, rawCallbacks, rec.checkedAt, key); err != nil {
		return fmt.Errorf("failed to update %s %v: %w", subj.key, key, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// mutate runs fn against the row for key inside one transaction and writes it back.
// When create is set a missing row is created first; otherwise subj.notFound is returned.
func (s *Store) mutate(ctx context.Context, subj subject, key interface{}, create bool,
	fn func(tx *sql.Tx, rec *record, now int64) error) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.load(ctx, tx, subj, key, true)
		if err != nil {
			return err
		}
		if rec == nil {
			if !create {
				return fmt.Errorf("%w: %v", subj.notFound, key)
			}
			if err := s.insert(ctx, tx, subj, key); err != nil {
				return err
			}
			rec = &record{groups: []string{}, timed: []storage.TimedGroup{}, callbacks: []string{}}
		}

		now := s.now().Unix()
		if err := fn(tx, rec, now); err != nil {
			return err
		}
		return s.save(ctx, tx, subj, key, rec, now)
	})
}

func (s *Store) exists(ctx context.Context, subj subject, key interface{}) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := s.q(fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", subj.table, subj.key))
	var one int
	err := s.db.QueryRowContext(ctx, query, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s %v: %w", subj.key, key, err)
	}
	return true, nil
}

func (s *Store) activeGroups(ctx context.Context, subj subject, key interface{}) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.load(ctx, s.db, subj, key, false)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []string{}, nil
	}
	perm := storage.CachedPermission{Groups: rec.groups, TimedGroups: rec.timed}
	return perm.ActiveGroups(s.now().Unix()), nil
}

func (s *Store) hydrate(ctx context.Context, subj subject, key interface{}) (*storage.CachedPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.load(ctx, s.db, subj, key, false)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %v", subj.notFound, key)
	}
	return rec.snapshot(s.now().Unix(), s.generation), nil
}

func (s *Store) addToGroup(ctx context.Context, subj subject, key interface{}, group string) error {
	return s.mutate(ctx, subj, key, true, func(tx *sql.Tx, rec *record, now int64) error {
		if err := s.requireGroup(ctx, tx, group); err != nil {
			return err
		}
		if storage.Contains(rec.groups, group) {
			return fmt.Errorf("%w: %s", storage.ErrAlreadyMember, group)
		}
		rec.groups = append(rec.groups, group)
		return nil
	})
}

func (s *Store) removeFromGroup(ctx context.Context, subj subject, key interface{}, group string) error {
	return s.mutate(ctx, subj, key, false, func(tx *sql.Tx, rec *record, now int64) error {
		if err := s.requireGroup(ctx, tx, group); err != nil {
			return err
		}
		if !storage.Contains(rec.groups, group) {
			return fmt.Errorf("%w: %s", storage.ErrNotMember, group)
		}
		rec.groups = storage.Remove(rec.groups, group)
		return nil
	})
}

func (s *Store) addToTimedGroup(ctx context.Context, subj subject, key interface{}, group string, durationSecs, delaySecs int64) error {
	if durationSecs < 0 || delaySecs < 0 {
		return storage.ErrInvalidDuration
	}

	return s.mutate(ctx, subj, key, true, func(tx *sql.Tx, rec *record, now int64) error {
		if err := s.requireGroup(ctx, tx, group); err != nil {
			return err
		}

		tg := storage.TimedGroup{GroupName: group, ExpireAtTime: now + durationSecs}
		if delaySecs > 0 {
			tg.DelayUntilTime = now + delaySecs
		}
		rec.removeTimed(group)
		rec.timed = append(rec.timed, tg)
		return nil
	})
}

func (s *Store) removeFromTimedGroup(ctx context.Context, subj subject, key interface{}, group string) error {
	return s.mutate(ctx, subj, key, false, func(tx *sql.Tx, rec *record, now int64) error {
		if err := s.requireGroup(ctx, tx, group); err != nil {
			return err
		}
		if !rec.hasTimed(group, now) {
			return fmt.Errorf("%w: %s", storage.ErrNotMember, group)
		}
		rec.removeTimed(group)
		return nil
	})
}

func (s *Store) updateCallbacks(ctx context.Context, subj subject, key interface{}, groups []string) error {
	return s.mutate(ctx, subj, key, false, func(tx *sql.Tx, rec *record, now int64) error {
		rec.callbacks = append([]string{}, groups...)
		rec.checkedAt = s.now().UnixNano()
		if rec.checkedAt < s.generation {
			rec.checkedAt = s.generation
		}
		return nil
	})
}

// AddPlayer registers identity with no memberships; existing players are left untouched
func (s *Store) AddPlayer(ctx context.Context, identity string) (err error) {
	defer s.observe("AddPlayer", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(ctx, s.db, s.players, identity)
}

// IsPlayerExists reports whether identity has a row
func (s *Store) IsPlayerExists(ctx context.Context, identity string) (ok bool, err error) {
	defer s.observe("IsPlayerExists", time.Now(), &err)
	return s.exists(ctx, s.players, identity)
}

// GetPlayerGroups returns static groups followed by active timed groups
func (s *Store) GetPlayerGroups(ctx context.Context, identity string) (groups []string, err error) {
	defer s.observe("GetPlayerGroups", time.Now(), &err)
	return s.activeGroups(ctx, s.players, identity)
}

// HydratePlayerGroups returns the full snapshot for identity
func (s *Store) HydratePlayerGroups(ctx context.Context, identity string) (perm *storage.CachedPermission, err error) {
	defer s.observe("HydratePlayerGroups", time.Now(), &err)
	return s.hydrate(ctx, s.players, identity)
}

// AddPlayerToGroup adds a permanent membership, registering the player if needed
func (s *Store) AddPlayerToGroup(ctx context.Context, identity, group string) (err error) {
	defer s.observe("AddPlayerToGroup", time.Now(), &err)
	return s.addToGroup(ctx, s.players, identity, group)
}

// RemovePlayerFromGroup removes a permanent membership
func (s *Store) RemovePlayerFromGroup(ctx context.Context, identity, group string) (err error) {
	defer s.observe("RemovePlayerFromGroup", time.Now(), &err)
	return s.removeFromGroup(ctx, s.players, identity, group)
}

// AddPlayerToTimedGroup creates or replaces a timed membership
func (s *Store) AddPlayerToTimedGroup(ctx context.Context, identity, group string, durationSecs, delaySecs int64) (err error) {
	defer s.observe("AddPlayerToTimedGroup", time.Now(), &err)
	return s.addToTimedGroup(ctx, s.players, identity, group, durationSecs, delaySecs)
}

// RemovePlayerFromTimedGroup removes a timed membership
func (s *Store) RemovePlayerFromTimedGroup(ctx context.Context, identity, group string) (err error) {
	defer s.observe("RemovePlayerFromTimedGroup", time.Now(), &err)
	return s.removeFromTimedGroup(ctx, s.players, identity, group)
}

// UpdatePlayerGroupCallbacks stores provider results and marks them checked
func (s *Store) UpdatePlayerGroupCallbacks(ctx context.Context, identity string, groups []string) (err error) {
	defer s.observe("UpdatePlayerGroupCallbacks", time.Now(), &err)
	return s.updateCallbacks(ctx, s.players, identity, groups)
}

// AddTribe registers tribeID with no memberships; existing tribes are left untouched
func (s *Store) AddTribe(ctx context.Context, tribeID int64) (err error) {
	defer s.observe("AddTribe", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(ctx, s.db, s.tribes, tribeID)
}

// IsTribeExists reports whether tribeID has a row
func (s *Store) IsTribeExists(ctx context.Context, tribeID int64) (ok bool, err error) {
	defer s.observe("IsTribeExists", time.Now(), &err)
	return s.exists(ctx, s.tribes, tribeID)
}

// GetTribeGroups returns static groups followed by active timed groups
func (s *Store) GetTribeGroups(ctx context.Context, tribeID int64) (groups []string, err error) {
	defer s.observe("GetTribeGroups", time.Now(), &err)
	return s.activeGroups(ctx, s.tribes, tribeID)
}

// HydrateTribeGroups returns the full snapshot for tribeID
func (s *Store) HydrateTribeGroups(ctx context.Context, tribeID int64) (perm *storage.CachedPermission, err error) {
	defer s.observe("HydrateTribeGroups", time.Now(), &err)
	return s.hydrate(ctx, s.tribes, tribeID)
}

// AddTribeToGroup adds a permanent membership, registering the tribe if needed
func (s *Store) AddTribeToGroup(ctx context.Context, tribeID int64, group string) (err error) {
	defer s.observe("AddTribeToGroup", time.Now(), &err)
	return s.addToGroup(ctx, s.tribes, tribeID, group)
}

// RemoveTribeFromGroup removes a permanent membership
func (s *Store) RemoveTribeFromGroup(ctx context.Context, tribeID int64, group string) (err error) {
	defer s.observe("RemoveTribeFromGroup", time.Now(), &err)
	return s.removeFromGroup(ctx, s.tribes, tribeID, group)
}

// AddTribeToTimedGroup creates or replaces a timed membership
func (s *Store) AddTribeToTimedGroup(ctx context.Context, tribeID int64, group string, durationSecs, delaySecs int64) (err error) {
	defer s.observe("AddTribeToTimedGroup", time.Now(), &err)
	return s.addToTimedGroup(ctx, s.tribes, tribeID, group, durationSecs, delaySecs)
}

// RemoveTribeFromTimedGroup removes a timed membership
func (s *Store) RemoveTribeFromTimedGroup(ctx context.Context, tribeID int64, group string) (err error) {
	defer s.observe("RemoveTribeFromTimedGroup", time.Now(), &err)
	return s.removeFromTimedGroup(ctx, s.tribes, tribeID, group)
}

// UpdateTribeGroupCallbacks stores provider results and marks them checked
func (s *Store) UpdateTribeGroupCallbacks(ctx context.Context, tribeID int64, groups []string) (err error) {
	defer s.observe("UpdateTribeGroupCallbacks", time.Now(), &err)
	return s.updateCallbacks(ctx, s.tribes, tribeID, groups)
}

var _ storage.Backend = (*Store)(nil)
