package resync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/permissions/pkg/async"
	"github.com/platinummonkey/permissions/pkg/observability"
)

// MinInterval is the shortest allowed resync interval
const MinInterval = 20 * time.Second

// ErrInProgress is returned by SyncNow while another resync is running
var ErrInProgress = errors.New("resync already in progress")

// Initializer is the part of storage.Backend the Syncer drives
type Initializer interface {
	Init(ctx context.Context) error
}

// AfterSyncFunc runs on the worker after every successful resync
type AfterSyncFunc func(ctx context.Context) error

// Syncer schedules backend resyncs
type Syncer struct {
	target   Initializer
	interval time.Duration
	timeout  time.Duration
	after    AfterSyncFunc

	mu      sync.Mutex
	cron    *cron.Cron
	pool    *async.WorkerPool
	running atomic.Bool
	lastRun atomic.Int64

	logger  logrus.FieldLogger
	metrics *observability.Metrics
}

// Option configures a Syncer
type Option func(*Syncer)

// WithTimeout bounds a single resync
func WithTimeout(timeout time.Duration) Option {
	return func(s *Syncer) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithAfterSync runs fn after every successful resync
func WithAfterSync(fn AfterSyncFunc) Option {
	return func(s *Syncer) {
		s.after = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Syncer) {
		s.logger = observability.OrDiscard(logger)
	}
}

// WithMetrics records resync runs
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Syncer) {
		s.metrics = metrics
	}
}

// New creates a Syncer. Intervals below MinInterval are raised to it.
func New(target Initializer, interval time.Duration, opts ...Option) *Syncer {
	if interval < MinInterval {
		interval = MinInterval
	}

	s := &Syncer{
		target:   target,
		interval: interval,
		timeout:  interval,
		logger:   observability.OrDiscard(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("component", "resync")
	return s
}

// Interval returns the effective resync interval
func (s *Syncer) Interval() time.Duration {
	return s.interval
}

// LastRun returns when the last resync finished, zero if none has
func (s *Syncer) LastRun() time.Time {
	ns := s.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Status summarizes the schedule for the admin API
type Status struct {
	IntervalSeconds int64      `json:"interval_seconds"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	Running         bool       `json:"running"`
}

// Status reports the interval, the last finished run and whether one is running
func (s *Syncer) Status() Status {
	status := Status{
		IntervalSeconds: int64(s.interval / time.Second),
		Running:         s.running.Load(),
	}
	if last := s.LastRun(); !last.IsZero() {
		status.LastRun = &last
	}
	return status
}

// Start schedules resyncs until ctx is done or Stop is called
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("resync already started")
	}

	s.pool = async.NewWorkerPool(ctx, 1, "database resync", s.timeout, s.logger)
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		s.pool.Shutdown(time.Second)
		s.cron, s.pool = nil, nil
		return fmt.Errorf("failed to schedule resync: %w", err)
	}
	s.cron.Start()

	s.logger.WithField("interval", s.interval.String()).Info("Resync scheduled")
	return nil
}

// Stop cancels the schedule and waits up to timeout for a running resync
func (s *Syncer) Stop(timeout time.Duration) error {
	s.mu.Lock()
	c, pool := s.cron, s.pool
	s.cron, s.pool = nil, nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	<-c.Stop().Done()
	return pool.Shutdown(timeout)
}

// tick queues one resync unless the previous one is still running
func (s *Syncer) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.ObserveResync(time.Now(), "skipped")
		s.logger.Warn("Previous resync still running, skipping tick")
		return
	}

	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()

	if pool == nil || !pool.TrySubmit(s.job) {
		s.running.Store(false)
		s.metrics.ObserveResync(time.Now(), "skipped")
	}
}

func (s *Syncer) job(ctx context.Context) error {
	defer s.running.Store(false)
	defer observability.RecoverPanic(s.logger, "resync")

	s.sync(ctx)
	return nil
}

// SyncNow runs one resync on the calling goroutine
func (s *Syncer) SyncNow(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrInProgress
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.sync(ctx)
}

func (s *Syncer) sync(ctx context.Context) error {
	start := time.Now()
	err := s.target.Init(ctx)
	if err == nil && s.after != nil {
		err = s.after(ctx)
	}
	s.lastRun.Store(time.Now().UnixNano())

	if err != nil {
		s.metrics.ObserveResync(start, "error")
		s.logger.WithError(err).Error("Resync failed")
		return err
	}
	s.metrics.ObserveResync(start, "success")
	s.logger.WithField("duration", time.Since(start).String()).Debug("Resync completed")
	return nil
}

// WarmUp returns an AfterSyncFunc that calls load for every key returned by
// keys, spread over workers goroutines. Used to refill the subject cache for
// online players after a resync has purged it.
func WarmUp[T any](keys func() []T, workers int, timeout time.Duration, load func(context.Context, T) error) AfterSyncFunc {
	return func(ctx context.Context) error {
		items := keys()
		if len(items) == 0 {
			return nil
		}
		errs := async.Batch(ctx, items, workers, "cache warm-up", timeout, load)
		if len(errs) > 0 {
			return fmt.Errorf("cache warm-up failed for %d of %d subjects: %w", len(errs), len(items), errors.Join(errs...))
		}
		return nil
	}
}
