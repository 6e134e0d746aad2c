package permissions

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/presence"
	"github.com/platinummonkey/permissions/pkg/storage"
)

// Wildcard grants every permission
const Wildcard = "*"

// NoTribe is the tribe ID handed to providers for players that are offline
// or not in a tribe
const NoTribe int64 = -1

// Service resolves groups and permissions and applies membership changes
type Service struct {
	backend   storage.Backend
	registry  *Registry
	directory presence.Directory

	now     func() time.Time
	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithDirectory sets the live session directory
func WithDirectory(directory presence.Directory) Option {
	return func(s *Service) {
		if directory != nil {
			s.directory = directory
		}
	}
}

// WithClock overrides the wall clock used to render timed memberships
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = observability.OrDiscard(logger)
	}
}

// WithMetrics records provider invocations
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService creates a Service. A nil registry gets a fresh one; without
// WithDirectory every player is treated as offline.
func NewService(backend storage.Backend, registry *Registry, opts ...Option) *Service {
	if registry == nil {
		registry = NewRegistry()
	}

	s := &Service{
		backend:   backend,
		registry:  registry,
		directory: presence.NewTracker(),
		now:       time.Now,
		logger:    observability.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the subscriber and provider registry
func (s *Service) Registry() *Registry {
	return s.registry
}

// Backend returns the storage backend
func (s *Service) Backend() storage.Backend {
	return s.backend
}

// Directory returns the live session directory
func (s *Service) Directory() presence.Directory {
	return s.directory
}

// PlayerGroups resolves every group a player holds: static and timed groups,
// then the groups of the player's current tribe and its size defaults, then
// dynamic provider groups. Order is first-seen, without duplicates.
func (s *Service) PlayerGroups(ctx context.Context, identity string) ([]string, error) {
	groups, err := s.backend.GetPlayerGroups(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to get player groups: %w", err)
	}
	groups = storage.AppendUnique(nil, groups...)

	tribeID := NoTribe
	if session, online := s.directory.FindPlayer(identity); online && session.TribeID > 0 {
		tribeID = session.TribeID

		tribeGroups, err := s.backend.GetTribeGroups(ctx, tribeID)
		if err != nil {
			return nil, fmt.Errorf("failed to get tribe groups: %w", err)
		}
		groups = storage.AppendUnique(groups, tribeGroups...)

		if tribe, ok := s.directory.Tribe(tribeID); ok {
			groups = storage.AppendUnique(groups, s.TribeDefaultGroups(tribe)...)
		} else {
			s.logger.WithFields(logrus.Fields{
				"identity": identity,
				"tribe_id": tribeID,
			}).Warn("Tribe roster unavailable")
		}
	}

	callbackGroups, err := s.CallbackGroups(ctx, identity, tribeID)
	if err != nil {
		return nil, err
	}
	return storage.AppendUnique(groups, callbackGroups...), nil
}

// TribeGroups returns a tribe's static and active timed groups
func (s *Service) TribeGroups(ctx context.Context, tribeID int64) ([]string, error) {
	groups, err := s.backend.GetTribeGroups(ctx, tribeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tribe groups: %w", err)
	}
	return groups, nil
}

// TribeDefaultGroups returns the synthetic TribeSize and TribeOnline groups
func (s *Service) TribeDefaultGroups(tribe presence.Tribe) []string {
	return []string{
		fmt.Sprintf("TribeSize:%d", len(tribe.Members)),
		fmt.Sprintf("TribeOnline:%d", presence.OnlineMembers(s.directory, tribe)),
	}
}

// CallbackGroups asks every registered provider for dynamic groups. Providers
// that cache by identity or tribe reuse a stored result while it is current,
// and otherwise store the live result when it is non-empty and the subject
// has a row.
func (s *Service) CallbackGroups(ctx context.Context, identity string, tribeID int64) ([]string, error) {
	var groups []string

	for _, p := range s.registry.Providers() {
		if p.OnlyCheckOnline {
			continue
		}

		cache := false
		if p.CacheByIdentity {
			cached, ok, err := s.cachedPlayerCallbacks(ctx, identity)
			if err != nil {
				return nil, err
			}
			if ok && cached.HasCheckedCallbacks {
				groups = storage.AppendUnique(groups, cached.CallbackGroups...)
				continue
			}
			cache = cache || ok
		}
		if p.CacheByTribe {
			cached, ok, err := s.cachedTribeCallbacks(ctx, tribeID)
			if err != nil {
				return nil, err
			}
			if ok && cached.HasCheckedCallbacks {
				groups = storage.AppendUnique(groups, cached.CallbackGroups...)
				continue
			}
			cache = cache || ok
		}

		result, err := s.invoke(ctx, p, identity, &tribeID)
		if err != nil {
			s.logger.WithError(err).WithField("provider", p.Name).Error("Group provider failed")
			continue
		}

		if cache && len(result) > 0 {
			if err := s.storeCallbacks(ctx, p, identity, tribeID, result); err != nil {
				return nil, err
			}
		}
		groups = storage.AppendUnique(groups, result...)
	}

	return groups, nil
}

func (s *Service) cachedPlayerCallbacks(ctx context.Context, identity string) (*storage.CachedPermission, bool, error) {
	exists, err := s.backend.IsPlayerExists(ctx, identity)
	if err != nil || !exists {
		return nil, false, err
	}
	perm, err := s.backend.HydratePlayerGroups(ctx, identity)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hydrate player: %w", err)
	}
	return perm, true, nil
}

func (s *Service) cachedTribeCallbacks(ctx context.Context, tribeID int64) (*storage.CachedPermission, bool, error) {
	exists, err := s.backend.IsTribeExists(ctx, tribeID)
	if err != nil || !exists {
		return nil, false, err
	}
	perm, err := s.backend.HydrateTribeGroups(ctx, tribeID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hydrate tribe: %w", err)
	}
	return perm, true, nil
}

func (s *Service) storeCallbacks(ctx context.Context, p Provider, identity string, tribeID int64, groups []string) error {
	if p.CacheByIdentity {
		exists, err := s.backend.IsPlayerExists(ctx, identity)
		if err != nil {
			return err
		}
		if exists {
			if err := s.backend.UpdatePlayerGroupCallbacks(ctx, identity, groups); err != nil {
				return fmt.Errorf("failed to store player callback groups: %w", err)
			}
		}
	}
	if p.CacheByTribe {
		exists, err := s.backend.IsTribeExists(ctx, tribeID)
		if err != nil {
			return err
		}
		if exists {
			if err := s.backend.UpdateTribeGroupCallbacks(ctx, tribeID, groups); err != nil {
				return fmt.Errorf("failed to store tribe callback groups: %w", err)
			}
		}
	}
	return nil
}

// invoke calls a provider, turning a panic into an error
func (s *Service) invoke(ctx context.Context, p Provider, identity string, tribeID *int64) (groups []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = observability.MustRecover(rec)
		}
	}()

	s.metrics.CallbackInvoked(p.Name)
	return p.Groups(ctx, identity, tribeID), nil
}

// IsPlayerInGroup reports whether group is among the player's resolved groups
func (s *Service) IsPlayerInGroup(ctx context.Context, identity, group string) (bool, error) {
	groups, err := s.PlayerGroups(ctx, identity)
	if err != nil {
		return false, err
	}
	return storage.Contains(groups, group), nil
}

// IsTribeInGroup reports whether group is among the tribe's groups
func (s *Service) IsTribeInGroup(ctx context.Context, tribeID int64, group string) (bool, error) {
	groups, err := s.TribeGroups(ctx, tribeID)
	if err != nil {
		return false, err
	}
	return storage.Contains(groups, group), nil
}

// GroupHasPermission reports whether group exists and holds permission or the
// wildcard
func (s *Service) GroupHasPermission(ctx context.Context, group, permission string) (bool, error) {
	exists, err := s.backend.IsGroupExists(ctx, group)
	if err != nil || !exists {
		return false, err
	}

	perms, err := s.GroupPermissions(ctx, group)
	if err != nil {
		return false, err
	}
	return storage.Contains(perms, permission) || storage.Contains(perms, Wildcard), nil
}

// PlayerHasPermission reports whether any resolved group of the player holds
// permission or the wildcard
func (s *Service) PlayerHasPermission(ctx context.Context, identity, permission string) (bool, error) {
	groups, err := s.PlayerGroups(ctx, identity)
	if err != nil {
		return false, err
	}
	return s.anyGroupHas(ctx, groups, permission)
}

// TribeHasPermission reports whether any group of the tribe holds permission
// or the wildcard
func (s *Service) TribeHasPermission(ctx context.Context, tribeID int64, permission string) (bool, error) {
	groups, err := s.TribeGroups(ctx, tribeID)
	if err != nil {
		return false, err
	}
	return s.anyGroupHas(ctx, groups, permission)
}

func (s *Service) anyGroupHas(ctx context.Context, groups []string, permission string) (bool, error) {
	for _, group := range groups {
		has, err := s.GroupHasPermission(ctx, group, permission)
		if err != nil || has {
			return has, err
		}
	}
	return false, nil
}

// GroupPermissions returns the permissions granted to group. An empty name
// has no permissions.
func (s *Service) GroupPermissions(ctx context.Context, group string) ([]string, error) {
	if group == "" {
		return []string{}, nil
	}
	return s.backend.GetGroupPermissions(ctx, group)
}

// AllGroups returns every group name
func (s *Service) AllGroups(ctx context.Context) ([]string, error) {
	return s.backend.GetAllGroups(ctx)
}

// GroupMembers returns the identities of the players holding group
func (s *Service) GroupMembers(ctx context.Context, group string) ([]string, error) {
	return s.backend.GetGroupMembers(ctx, group)
}
