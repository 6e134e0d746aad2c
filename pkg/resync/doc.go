// Package resync periodically re-initializes the storage backend.
//
// Every ClusterSyncTime seconds the Syncer hands backend.Init to a single
// background worker so slow networked databases never block command handling.
// Init reconnects a dropped handle, re-applies the schema, and marks cached
// provider results stale; with the cache layer in front it also purges every
// cached subject, which picks up changes other servers made to a shared
// database.
//
// A tick that fires while the previous resync is still running is skipped.
// A running resync is never interrupted except by the worker timeout.
package resync
