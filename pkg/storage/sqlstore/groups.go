package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/permissions/pkg/storage"
)

// GetGroupPermissions returns the permissions granted to group, empty when the group does not exist
func (s *Store) GetGroupPermissions(ctx context.Context, group string) (perms []string, err error) {
	defer s.observe("GetGroupPermissions", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	perms, err = s.loadPermissions(ctx, s.db, group, false)
	if errors.Is(err, storage.ErrGroupNotFound) {
		return []string{}, nil
	}
	return perms, err
}

// GetAllGroups returns every group name in creation order
func (s *Store) GetAllGroups(ctx context.Context) (groups []string, err error) {
	defer s.observe("GetAllGroups", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf("SELECT group_name FROM %s ORDER BY id", s.tables.Groups)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, name)
	}
	return groups, rows.Err()
}

// GetGroupMembers returns the identities of players holding group permanently
// or through an active timed membership
func (s *Store) GetGroupMembers(ctx context.Context, group string) (members []string, err error) {
	defer s.observe("GetGroupMembers", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := s.q(fmt.Sprintf(`
		SELECT eos_id, permission_groups, timed_permission_groups
		FROM %s
		WHERE %s
		ORDER BY id
	`, s.tables.Players, likeClause))

	pattern := likePattern(group)
	rows, err := s.db.QueryContext(ctx, query, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	now := s.now().Unix()
	members = []string{}
	for rows.Next() {
		var identity, rawGroups, rawTimed string
		if err := rows.Scan(&identity, &rawGroups, &rawTimed); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}

		groups, err := decodeList(rawGroups)
		if err != nil {
			return nil, err
		}
		timed, err := decodeTimed(rawTimed)
		if err != nil {
			return nil, err
		}

		perm := storage.CachedPermission{Groups: groups, TimedGroups: timed}
		if storage.Contains(perm.ActiveGroups(now), group) {
			members = append(members, identity)
		}
	}
	return members, rows.Err()
}

// IsGroupExists reports whether group exists
func (s *Store) IsGroupExists(ctx context.Context, group string) (exists bool, err error) {
	defer s.observe("IsGroupExists", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.groupExists(ctx, s.db, group)
}

// AddGroup creates an empty group
func (s *Store) AddGroup(ctx context.Context, group string) (err error) {
	defer s.observe("AddGroup", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := s.groupExists(ctx, tx, group)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", storage.ErrGroupExists, group)
		}

		query := s.q(fmt.Sprintf("INSERT INTO %s (group_name, permissions) VALUES (?, ?)", s.tables.Groups))
		if _, err := tx.ExecContext(ctx, query, group, "[]"); err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		return nil
	})
}

// RemoveGroup deletes group and strips it from every player and tribe in one transaction
func (s *Store) RemoveGroup(ctx context.Context, group string) (err error) {
	defer s.observe("RemoveGroup", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := s.q(fmt.Sprintf("DELETE FROM %s WHERE group_name = ?", s.tables.Groups))
		res, err := tx.ExecContext(ctx, query, group)
		if err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", storage.ErrGroupNotFound, group)
		}

		if err := stripGroup[string](ctx, s, tx, s.players, group); err != nil {
			return err
		}
		return stripGroup[int64](ctx, s, tx, s.tribes, group)
	})
}

// GroupGrantPermission grants permission to group
func (s *Store) GroupGrantPermission(ctx context.Context, group, permission string) (err error) {
	defer s.observe("GroupGrantPermission", time.Now(), &err)

	return s.updatePermissions(ctx, group, func(perms []string) ([]string, error) {
		if storage.Contains(perms, permission) {
			return nil, fmt.Errorf("%w: %s", storage.ErrPermissionExists, permission)
		}
		return append(perms, permission), nil
	})
}

// GroupRevokePermission revokes permission from group
func (s *Store) GroupRevokePermission(ctx context.Context, group, permission string) (err error) {
	defer s.observe("GroupRevokePermission", time.Now(), &err)

	return s.updatePermissions(ctx, group, func(perms []string) ([]string, error) {
		if !storage.Contains(perms, permission) {
			return nil, fmt.Errorf("%w: %s", storage.ErrPermissionNotFound, permission)
		}
		return storage.Remove(perms, permission), nil
	})
}

func (s *Store) updatePermissions(ctx context.Context, group string, fn func([]string) ([]string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		perms, err := s.loadPermissions(ctx, tx, group, true)
		if err != nil {
			return err
		}

		perms, err = fn(perms)
		if err != nil {
			return err
		}

		raw, err := encodeList(perms)
		if err != nil {
			return err
		}

		query := s.q(fmt.Sprintf("UPDATE %s SET permissions = ? WHERE group_name = ?", s.tables.Groups))
		if _, err := tx.ExecContext(ctx, query, raw, group); err != nil {
			return fmt.Errorf("failed to update permissions: %w", err)
		}
		return nil
	})
}

func (s *Store) loadPermissions(ctx context.Context, q queryer, group string, lock bool) ([]string, error) {
	query := fmt.Sprintf("SELECT permissions FROM %s WHERE group_name = ?", s.tables.Groups)
	if lock {
		query += s.dialect.LockSuffix
	}

	var raw string
	err := q.QueryRowContext(ctx, s.q(query), group).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", storage.ErrGroupNotFound, group)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group permissions: %w", err)
	}
	return decodeList(raw)
}

func (s *Store) groupExists(ctx context.Context, q queryer, group string) (bool, error) {
	query := s.q(fmt.Sprintf("SELECT 1 FROM %s WHERE group_name = ?", s.tables.Groups))

	var one int
	err := q.QueryRowContext(ctx, query, group).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check group: %w", err)
	}
	return true, nil
}

func (s *Store) requireGroup(ctx context.Context, q queryer, group string) error {
	exists, err := s.groupExists(ctx, q, group)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", storage.ErrGroupNotFound, group)
	}
	return nil
}

// stripGroup removes group from the static and timed lists of every row in subj
func stripGroup[K any](ctx context.Context, s *Store, tx *sql.Tx, subj subject, group string) error {
	query := s.q(fmt.Sprintf(`
		SELECT %s, permission_groups, timed_permission_groups
		FROM %s
		WHERE %s
	`, subj.key, subj.table, likeClause))

	type change struct {
		key    K
		groups string
		timed  string
	}

	pattern := likePattern(group)
	rows, err := tx.QueryContext(ctx, query, pattern, pattern)
	if err != nil {
		return fmt.Errorf("failed to find members of %s: %w", group, err)
	}

	var changes []change
	for rows.Next() {
		var key K
		var rawGroups, rawTimed string
		if err := rows.Scan(&key, &rawGroups, &rawTimed); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan member: %w", err)
		}

		groups, err := decodeList(rawGroups)
		if err != nil {
			rows.Close()
			return err
		}
		timed, err := decodeTimed(rawTimed)
		if err != nil {
			rows.Close()
			return err
		}

		keptTimed := timed[:0:0]
		for _, tg := range timed {
			if tg.GroupName != group {
				keptTimed = append(keptTimed, tg)
			}
		}
		if len(keptTimed) == len(timed) && !storage.Contains(groups, group) {
			continue
		}

		c := change{key: key}
		if c.groups, err = encodeList(storage.Remove(groups, group)); err != nil {
			rows.Close()
			return err
		}
		if c.timed, err = encodeTimed(keptTimed); err != nil {
			rows.Close()
			return err
		}
		changes = append(changes, c)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	update := s.q(fmt.Sprintf(
		"UPDATE %s SET permission_groups = ?, timed_permission_groups = ? WHERE %s = ?",
		subj.table, subj.key))
	for _, c := range changes {
		if _, err := tx.ExecContext(ctx, update, c.groups, c.timed, c.key); err != nil {
			return fmt.Errorf("failed to remove %s from members: %w", group, err)
		}
	}
	return nil
}
