// Package sqlstore implements storage.Backend once over database/sql.
//
// The SQLite, MySQL and PostgreSQL backends are thin constructors around
// New with their Dialect. Each subject (player or tribe) is one row whose
// group lists are JSON arrays; every mutation is a read-modify-write of that
// row inside a single transaction. A Store-wide RWMutex serializes writers and
// Init against readers, so Init can run from the resync worker while commands
// use the same handle.
package sqlstore
