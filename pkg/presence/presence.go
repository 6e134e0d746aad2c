package presence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/permissions/pkg/async"
	"github.com/platinummonkey/permissions/pkg/observability"
)

// ErrEmptyIdentity is returned when joining without an identity
var ErrEmptyIdentity = errors.New("identity is required")

// Session is one connected player
type Session struct {
	Identity string `json:"identity"`
	PlayerID int64  `json:"player_id"`
	// TribeID is zero when the player is not in a tribe
	TribeID int64 `json:"tribe_id"`
}

// Tribe is a tribe roster
type Tribe struct {
	ID      int64   `json:"id"`
	Members []int64 `json:"members"`
}

// Directory answers live session questions
type Directory interface {
	// FindPlayer returns the session of a connected player
	FindPlayer(identity string) (Session, bool)
	// Tribe returns the roster of a tribe
	Tribe(tribeID int64) (Tribe, bool)
	// OnlinePlayerIDs returns the player IDs of every connected session
	OnlinePlayerIDs() []int64
}

// JoinHook runs in the background after a session joins
type JoinHook func(ctx context.Context, session Session) error

// SubjectRegistrar creates player and tribe rows
type SubjectRegistrar interface {
	AddPlayer(ctx context.Context, identity string) error
	AddTribe(ctx context.Context, tribeID int64) error
}

// RegisterSubjects returns a JoinHook that makes sure the joining player, and
// its tribe, have rows in the backend
func RegisterSubjects(registrar SubjectRegistrar) JoinHook {
	return func(ctx context.Context, session Session) error {
		if err := registrar.AddPlayer(ctx, session.Identity); err != nil {
			return err
		}
		if session.TribeID > 0 {
			return registrar.AddTribe(ctx, session.TribeID)
		}
		return nil
	}
}

// Tracker is an in-memory Directory
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]Session
	rosters  map[int64][]int64

	onJoin      JoinHook
	hookTimeout time.Duration
	logger      logrus.FieldLogger
	metrics     *observability.Metrics
}

// Option configures a Tracker
type Option func(*Tracker)

// WithJoinHook sets a hook run after every Join
func WithJoinHook(hook JoinHook) Option {
	return func(t *Tracker) {
		t.onJoin = hook
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(t *Tracker) {
		t.logger = observability.OrDiscard(logger)
	}
}

// WithMetrics keeps the online players gauge current
func WithMetrics(metrics *observability.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = metrics
	}
}

// NewTracker creates an empty Tracker
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		sessions:    make(map[string]Session),
		rosters:     make(map[int64][]int64),
		hookTimeout: 10 * time.Second,
		logger:      observability.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Join records a connected player, replacing any previous session with the
// same identity
func (t *Tracker) Join(ctx context.Context, session Session) error {
	if session.Identity == "" {
		return ErrEmptyIdentity
	}

	t.mu.Lock()
	t.sessions[session.Identity] = session
	online := len(t.sessions)
	t.mu.Unlock()

	t.setGauge(online)
	t.logger.WithFields(logrus.Fields{
		"identity": session.Identity,
		"tribe_id": session.TribeID,
	}).Debug("Player joined")

	if t.onJoin != nil {
		hook := t.onJoin
		async.SafeGo(context.WithoutCancel(ctx), t.logger, t.hookTimeout, "register session", func(ctx context.Context) error {
			return hook(ctx, session)
		})
	}
	return nil
}

// Leave removes a player. It reports whether the player was connected.
func (t *Tracker) Leave(identity string) bool {
	t.mu.Lock()
	_, ok := t.sessions[identity]
	delete(t.sessions, identity)
	online := len(t.sessions)
	t.mu.Unlock()

	if ok {
		t.setGauge(online)
		t.logger.WithField("identity", identity).Debug("Player left")
	}
	return ok
}

// SetTribeRoster replaces the member list of a tribe. An empty list forgets the tribe.
func (t *Tracker) SetTribeRoster(tribeID int64, members []int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(members) == 0 {
		delete(t.rosters, tribeID)
		return
	}
	t.rosters[tribeID] = append([]int64(nil), members...)
}

// FindPlayer implements Directory
func (t *Tracker) FindPlayer(identity string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[identity]
	return s, ok
}

// Tribe implements Directory. Without a registered roster, the tribe's
// connected members stand in for it.
func (t *Tracker) Tribe(tribeID int64) (Tribe, bool) {
	if tribeID <= 0 {
		return Tribe{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if members, ok := t.rosters[tribeID]; ok {
		return Tribe{ID: tribeID, Members: append([]int64(nil), members...)}, true
	}

	var members []int64
	for _, s := range t.sessions {
		if s.TribeID == tribeID {
			members = append(members, s.PlayerID)
		}
	}
	if len(members) == 0 {
		return Tribe{}, false
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return Tribe{ID: tribeID, Members: members}, true
}

// OnlinePlayerIDs implements Directory
func (t *Tracker) OnlinePlayerIDs() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]int64, 0, len(t.sessions))
	for _, s := range t.sessions {
		ids = append(ids, s.PlayerID)
	}
	return ids
}

// Sessions returns every connected session ordered by identity
func (t *Tracker) Sessions() []Session {
	t.mu.RLock()
	sessions := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Identity < sessions[j].Identity })
	return sessions
}

// OnlinePlayers returns the number of connected players
func (t *Tracker) OnlinePlayers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func (t *Tracker) setGauge(online int) {
	if t.metrics != nil {
		t.metrics.OnlinePlayers.Set(float64(online))
	}
}

// OnlineMembers counts the connected players on a tribe's roster
func OnlineMembers(dir Directory, tribe Tribe) int {
	roster := make(map[int64]struct{}, len(tribe.Members))
	for _, id := range tribe.Members {
		roster[id] = struct{}{}
	}

	online := 0
	for _, id := range dir.OnlinePlayerIDs() {
		if _, ok := roster[id]; ok {
			online++
		}
	}
	return online
}

var _ Directory = (*Tracker)(nil)
