// Package cache puts a per-subject snapshot cache in front of a storage.Backend.
//
// Store implements storage.Backend itself, so the permissions service is
// unaware of it. Hydrated player and tribe snapshots and group permission
// lists live in expirable LRUs whose TTL matches the resync interval.
// Static group lookups (GetPlayerGroups, GetTribeGroups) always go to the
// backend.
//
// Every write through the Store drops the entries it touched; Init drops
// everything. Invalidate is exported for the cluster bridge, which hears
// about writes made on other servers.
package cache
