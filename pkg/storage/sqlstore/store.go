package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/storage"
)

// Opener opens a new database handle. It is called once at construction and
// again whenever Init finds the current handle dead.
type Opener func() (*sql.DB, error)

// Store implements storage.Backend over database/sql
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	open    Opener
	dialect Dialect
	tables  storage.Tables
	players subject
	tribes  subject

	now func() time.Time
	// generation is the UnixNano stamp of the last Init; callback results
	// stamped before it are stale
	generation int64

	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// subject describes one membership table (players or tribes)
type subject struct {
	table    string
	key      string
	notFound error
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the wall clock used for timed memberships
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records every backend call
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

// New opens the database and returns a Store. The schema is created by Init.
func New(dialect Dialect, tables storage.Tables, open Opener, opts ...Option) (*Store, error) {
	if err := ValidateTables(tables); err != nil {
		return nil, err
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Store{
		open:    open,
		dialect: dialect,
		tables:  tables,
		players: subject{table: tables.Players, key: "eos_id", notFound: storage.ErrPlayerNotFound},
		tribes:  subject{table: tables.Tribes, key: "tribe_id", notFound: storage.ErrTribeNotFound},
		now:     time.Now,
		logger:  discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("backend", dialect.Name)

	db, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	s.db = db

	return s, nil
}

// Kind returns the dialect name
func (s *Store) Kind() string {
	return s.dialect.Name
}

// DB returns the current handle, for health checks
func (s *Store) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Close closes the database handle
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Init pings the database, reopening the handle if the ping fails, ensures the
// schema exists and starts a new callback generation. It holds the write lock
// so it never interleaves with a mutation.
func (s *Store) Init(ctx context.Context) (err error) {
	defer s.observe("Init", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.WithError(err).Warn("database ping failed, reopening connection")

		db, openErr := s.open()
		if openErr != nil {
			return fmt.Errorf("failed to reopen database: %w", openErr)
		}
		if pingErr := db.PingContext(ctx); pingErr != nil {
			db.Close()
			return fmt.Errorf("failed to connect to database: %w", pingErr)
		}
		s.db.Close()
		s.db = db
	}

	for _, stmt := range s.dialect.Schema(s.tables) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	gen := s.now().UnixNano()
	if gen <= s.generation {
		gen = s.generation + 1
	}
	s.generation = gen

	s.logger.Debug("database initialized")
	return nil
}

func (s *Store) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveBackend(op, s.dialect.Name, start, *err)
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
