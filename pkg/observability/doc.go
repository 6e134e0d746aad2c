// Package observability provides structured logging, Prometheus metrics, health
// checks, panic recovery and graceful shutdown for the permissions daemon.
//
// # Structured Logging
//
// Loggers are logrus loggers with a JSON formatter:
//
//	logger := observability.NewLogger(observability.ParseLogLevel(cfg.LogLevel), os.Stdout)
//	logger.WithField("identity", id).Info("player joined")
//
// Components accept a logrus.FieldLogger so tests can pass a scoped entry.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.CommandsTotal.WithLabelValues("Permissions.Add", "rcon", "success").Inc()
//
// The ObserveBackend and CacheHit helpers accept a nil *Metrics so callers
// that run without metrics need no branches.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	router.HandleFunc("/health/ready", checker.Readiness)
//
// The database is required; Redis only degrades the status.
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, httpServer, 30*time.Second)
//	sm.RegisterShutdownFunc(func(ctx context.Context) error { return backend.Close() })
//	sm.WaitForShutdown(ctx)
package observability
