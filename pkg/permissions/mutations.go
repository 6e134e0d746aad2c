package permissions

import (
	"context"

	"github.com/sirupsen/logrus"
)

// AddPlayerToGroup grants group to a player permanently
func (s *Service) AddPlayerToGroup(ctx context.Context, identity, group string) error {
	err := s.backend.AddPlayerToGroup(ctx, identity, group)
	s.registry.Notify(identity, 0)
	return s.logMutation(err, "Player added to group", logrus.Fields{"identity": identity, "group": group})
}

// RemovePlayerFromGroup revokes a permanent player membership. Subscribers are
// notified both before and after the change.
func (s *Service) RemovePlayerFromGroup(ctx context.Context, identity, group string) error {
	s.registry.Notify(identity, 0)
	err := s.backend.RemovePlayerFromGroup(ctx, identity, group)
	s.registry.Notify(identity, 0)
	return s.logMutation(err, "Player removed from group", logrus.Fields{"identity": identity, "group": group})
}

// AddPlayerToTimedGroup grants group to a player for durationSecs, starting
// after delaySecs. durationSecs already includes the delay. Subscribers are
// notified both before and after the change.
func (s *Service) AddPlayerToTimedGroup(ctx context.Context, identity, group string, durationSecs, delaySecs int64) error {
	s.registry.Notify(identity, 0)
	err := s.backend.AddPlayerToTimedGroup(ctx, identity, group, durationSecs, delaySecs)
	s.registry.Notify(identity, 0)
	return s.logMutation(err, "Player added to timed group", logrus.Fields{
		"identity": identity,
		"group":    group,
		"duration": durationSecs,
		"delay":    delaySecs,
	})
}

// RemovePlayerFromTimedGroup revokes a timed player membership
func (s *Service) RemovePlayerFromTimedGroup(ctx context.Context, identity, group string) error {
	err := s.backend.RemovePlayerFromTimedGroup(ctx, identity, group)
	s.registry.Notify(identity, 0)
	return s.logMutation(err, "Player removed from timed group", logrus.Fields{"identity": identity, "group": group})
}

// AddTribeToGroup grants group to a tribe permanently
func (s *Service) AddTribeToGroup(ctx context.Context, tribeID int64, group string) error {
	err := s.backend.AddTribeToGroup(ctx, tribeID, group)
	s.registry.Notify("", tribeID)
	return s.logMutation(err, "Tribe added to group", logrus.Fields{"tribe_id": tribeID, "group": group})
}

// RemoveTribeFromGroup revokes a permanent tribe membership
func (s *Service) RemoveTribeFromGroup(ctx context.Context, tribeID int64, group string) error {
	err := s.backend.RemoveTribeFromGroup(ctx, tribeID, group)
	s.registry.Notify("", tribeID)
	return s.logMutation(err, "Tribe removed from group", logrus.Fields{"tribe_id": tribeID, "group": group})
}

// AddTribeToTimedGroup grants group to a tribe for durationSecs, starting after delaySecs
func (s *Service) AddTribeToTimedGroup(ctx context.Context, tribeID int64, group string, durationSecs, delaySecs int64) error {
	err := s.backend.AddTribeToTimedGroup(ctx, tribeID, group, durationSecs, delaySecs)
	s.registry.Notify("", tribeID)
	return s.logMutation(err, "Tribe added to timed group", logrus.Fields{
		"tribe_id": tribeID,
		"group":    group,
		"duration": durationSecs,
		"delay":    delaySecs,
	})
}

// RemoveTribeFromTimedGroup revokes a timed tribe membership
func (s *Service) RemoveTribeFromTimedGroup(ctx context.Context, tribeID int64, group string) error {
	err := s.backend.RemoveTribeFromTimedGroup(ctx, tribeID, group)
	s.registry.Notify("", tribeID)
	return s.logMutation(err, "Tribe removed from timed group", logrus.Fields{"tribe_id": tribeID, "group": group})
}

// AddGroup creates a group
func (s *Service) AddGroup(ctx context.Context, group string) error {
	err := s.backend.AddGroup(ctx, group)
	s.groupChanged(err, group, false)
	return s.logMutation(err, "Group added", logrus.Fields{"group": group})
}

// RemoveGroup deletes a group with every membership and grant referencing it
func (s *Service) RemoveGroup(ctx context.Context, group string) error {
	err := s.backend.RemoveGroup(ctx, group)
	s.groupChanged(err, group, true)
	return s.logMutation(err, "Group removed", logrus.Fields{"group": group})
}

// GroupGrantPermission grants permission to group
func (s *Service) GroupGrantPermission(ctx context.Context, group, permission string) error {
	err := s.backend.GroupGrantPermission(ctx, group, permission)
	s.groupChanged(err, group, false)
	return s.logMutation(err, "Permission granted", logrus.Fields{"group": group, "permission": permission})
}

// GroupRevokePermission revokes permission from group
func (s *Service) GroupRevokePermission(ctx context.Context, group, permission string) error {
	err := s.backend.GroupRevokePermission(ctx, group, permission)
	s.groupChanged(err, group, false)
	return s.logMutation(err, "Permission revoked", logrus.Fields{"group": group, "permission": permission})
}

// groupChanged tells group watchers about a successful group-level change.
// Membership subscribers are not notified.
func (s *Service) groupChanged(err error, group string, removed bool) {
	if err == nil {
		s.registry.NotifyGroup(group, removed)
	}
}

func (s *Service) logMutation(err error, msg string, fields logrus.Fields) error {
	entry := s.logger.WithFields(fields)
	if err != nil {
		entry.WithError(err).Debug(msg + " failed")
		return err
	}
	entry.Info(msg)
	return nil
}
