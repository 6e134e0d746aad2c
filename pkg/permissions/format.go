package permissions

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/permissions/pkg/storage"
)

const (
	tribeHeader     = "Tribe Permissions: "
	tribeChatHeader = `<RichColor Color="0.91, 0.85 , 0.09, 1">Tribe Permissions: </>`
)

// TimeLeft renders secs as at most intervals units out of days, hours,
// minutes and seconds, largest first, e.g. "1 Day, 2 Hrs"
func TimeLeft(secs int64, intervals int) string {
	units := []struct {
		name string
		size int64
	}{
		{"Day", 86400},
		{"Hr", 3600},
		{"Min", 60},
		{"Sec", 1},
	}

	var parts []string
	for _, u := range units {
		if secs <= 0 || len(parts) >= intervals {
			break
		}
		n := secs / u.size
		if n == 0 {
			continue
		}
		secs -= n * u.size

		name := u.name
		if n != 1 {
			name += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}
	return strings.Join(parts, ", ")
}

// PlayerGroupsString renders a player's static and timed groups, followed by
// the block of the tribe the player is currently in. Unknown players render
// as an empty string.
func (s *Service) PlayerGroupsString(ctx context.Context, identity string, forChat bool) (string, error) {
	exists, err := s.backend.IsPlayerExists(ctx, identity)
	if err != nil || !exists {
		return "", err
	}

	perm, err := s.backend.HydratePlayerGroups(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("failed to hydrate player: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(perm.Groups, ", "))
	s.writeTimed(&b, perm.TimedGroups)

	session, online := s.directory.FindPlayer(identity)
	if !online || session.TribeID <= 0 {
		return b.String(), nil
	}

	var defaults string
	if tribe, ok := s.directory.Tribe(session.TribeID); ok {
		defaults = strings.Join(s.TribeDefaultGroups(tribe), ", ")
	}
	tribeStr, err := s.TribeGroupsString(ctx, defaults, session.TribeID, forChat)
	if err != nil {
		return "", err
	}
	if b.Len() > 0 && tribeStr != "" {
		b.WriteString("\n")
	}
	b.WriteString(tribeStr)
	return b.String(), nil
}

// TribeGroupsString renders defaults, then the tribe's static and timed
// groups, under a "Tribe Permissions" header. Unknown tribes render as an
// empty string.
func (s *Service) TribeGroupsString(ctx context.Context, defaults string, tribeID int64, forChat bool) (string, error) {
	exists, err := s.backend.IsTribeExists(ctx, tribeID)
	if err != nil || !exists {
		return "", err
	}

	perm, err := s.backend.HydrateTribeGroups(ctx, tribeID)
	if err != nil {
		return "", fmt.Errorf("failed to hydrate tribe: %w", err)
	}

	var b strings.Builder
	b.WriteString(defaults)
	for _, group := range perm.Groups {
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(group)
	}
	s.writeTimed(&b, perm.TimedGroups)

	if b.Len() == 0 {
		return "", nil
	}
	if forChat {
		return tribeChatHeader + b.String(), nil
	}
	return tribeHeader + b.String(), nil
}

// writeTimed appends one line per unexpired timed group
func (s *Service) writeTimed(b *strings.Builder, timed []storage.TimedGroup) {
	now := s.now().Unix()
	for _, tg := range timed {
		if tg.IsExpired(now) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(tg.GroupName)
		if tg.IsPending(now) {
			b.WriteString(" - Activates in " + TimeLeft(tg.DelayUntilTime-now, 2))
		} else {
			b.WriteString(" - Ends in " + TimeLeft(tg.ExpireAtTime-now, 2))
		}
	}
}

// ListGroups renders every group with its permissions, one numbered line each
func (s *Service) ListGroups(ctx context.Context) (string, error) {
	groups, err := s.backend.GetAllGroups(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, group := range groups {
		perms, err := s.backend.GetGroupPermissions(ctx, group)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d) %s - ", i+1, group)
		for _, perm := range perms {
			b.WriteString(perm + "; ")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// GroupPermissionsString renders a group's permissions comma-joined
func (s *Service) GroupPermissionsString(ctx context.Context, group string) (string, error) {
	perms, err := s.GroupPermissions(ctx, group)
	if err != nil {
		return "", err
	}
	return strings.Join(perms, ","), nil
}
