package permissions

import (
	"context"
	"sync"
)

// UpdateFunc is called after a membership changes. identity is empty for
// tribe mutations and tribeID is zero for player mutations.
type UpdateFunc func(identity string, tribeID int64)

// GroupChangeFunc is called after a group is created, deleted, or has its
// grants changed. removed is true when the group was deleted.
type GroupChangeFunc func(group string, removed bool)

// GroupProvider computes dynamic groups for a player. tribeID is in/out: a
// provider may rewrite it, and later providers see the new value.
type GroupProvider func(ctx context.Context, identity string, tribeID *int64) []string

// Provider is a registered dynamic group source
type Provider struct {
	Name string
	// OnlyCheckOnline providers are never consulted during resolution
	OnlyCheckOnline bool
	// CacheByIdentity persists results on the player row
	CacheByIdentity bool
	// CacheByTribe persists results on the tribe row
	CacheByTribe bool
	Groups       GroupProvider
}

type subscriber struct {
	name string
	fn   UpdateFunc
}

type groupWatcher struct {
	name string
	fn   GroupChangeFunc
}

// Registry holds membership-change subscribers and dynamic group providers.
// Names are not unique; duplicates are kept in registration order.
type Registry struct {
	mu          sync.RWMutex
	subscribers []subscriber
	watchers    []groupWatcher
	providers   []Provider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe registers fn under name
func (r *Registry) Subscribe(name string, fn UpdateFunc) {
	if fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, subscriber{name: name, fn: fn})
}

// Unsubscribe removes the first subscriber registered under name. It reports
// whether one was found.
func (r *Registry) Unsubscribe(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subscribers {
		if s.name == name {
			r.subscribers = append(r.subscribers[:i:i], r.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// Notify calls every subscriber synchronously in registration order. The
// registry lock is not held while subscribers run, so a subscriber may
// subscribe or unsubscribe.
func (r *Registry) Notify(identity string, tribeID int64) {
	r.mu.RLock()
	subs := make([]subscriber, len(r.subscribers))
	copy(subs, r.subscribers)
	r.mu.RUnlock()

	for _, s := range subs {
		s.fn(identity, tribeID)
	}
}

// Subscribers returns the registered subscriber names in order
func (r *Registry) Subscribers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.subscribers))
	for i, s := range r.subscribers {
		names[i] = s.name
	}
	return names
}

// WatchGroups registers fn for group-level changes under name. Group watchers
// are separate from membership subscribers and are not called by Notify.
func (r *Registry) WatchGroups(name string, fn GroupChangeFunc) {
	if fn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, groupWatcher{name: name, fn: fn})
}

// UnwatchGroups removes the first group watcher registered under name
func (r *Registry) UnwatchGroups(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, w := range r.watchers {
		if w.name == name {
			r.watchers = append(r.watchers[:i:i], r.watchers[i+1:]...)
			return true
		}
	}
	return false
}

// NotifyGroup calls every group watcher in registration order, outside the lock
func (r *Registry) NotifyGroup(group string, removed bool) {
	r.mu.RLock()
	watchers := make([]groupWatcher, len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.RUnlock()

	for _, w := range watchers {
		w.fn(group, removed)
	}
}

// Watchers returns the registered group watcher names in order
func (r *Registry) Watchers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.watchers))
	for i, w := range r.watchers {
		names[i] = w.name
	}
	return names
}

// AddProvider registers a dynamic group provider. Providers without a
// Groups function are ignored.
func (r *Registry) AddProvider(p Provider) {
	if p.Groups == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// RemoveProvider removes the first provider registered under name
func (r *Registry) RemoveProvider(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.providers {
		if p.Name == name {
			r.providers = append(r.providers[:i:i], r.providers[i+1:]...)
			return true
		}
	}
	return false
}

// Providers returns a snapshot of the registered providers in order
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}
