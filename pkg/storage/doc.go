// Package storage defines the persistence boundary of the permissions service.
//
// # Overview
//
// A Backend durably stores permission groups, the permissions granted to them,
// player and tribe memberships (permanent and timed), and the cached results of
// dynamic group providers. Everything above this package (cache layer, resolution
// engine, command surface) holds derived state only.
//
// # Backend Implementations
//
// All implementations share the SQL logic in pkg/storage/sqlstore and differ only
// in their Dialect:
//
//	sqlite.Open(path, tables)        // embedded file store (default)
//	mysql.Open(mysql.Config{...})    // networked store, UseMysql=true
//	postgres.Open(url, tables)       // networked store, Backend=postgres
//
// The implementation is selected once at start-up from configuration and never
// swapped at runtime.
//
// # Timed Memberships
//
// A TimedGroup is pending while DelayUntilTime is in the future, active until
// ExpireAtTime, and expired afterwards. Expiry is evaluated lazily against the
// wall clock on every read; expired rows are pruned whenever the subject row is
// rewritten. Reads never report an expired membership as active.
//
// # Errors
//
// Logical failures are reported with the sentinel errors in errors.go, wrapped
// with context. Match them with errors.Is; the message of the returned error is
// the human-readable text shown to players and RCON clients.
//
// # Concurrency
//
// Backends synchronize internally. Init may be called from the resync worker
// while the main loop reads and writes through the same handle.
package storage
