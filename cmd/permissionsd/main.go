package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/permissions/pkg/cache"
	"github.com/platinummonkey/permissions/pkg/cluster"
	"github.com/platinummonkey/permissions/pkg/commands"
	"github.com/platinummonkey/permissions/pkg/config"
	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/permissions"
	"github.com/platinummonkey/permissions/pkg/presence"
	"github.com/platinummonkey/permissions/pkg/resync"
	"github.com/platinummonkey/permissions/pkg/server"
	"github.com/platinummonkey/permissions/pkg/storage"
	"github.com/platinummonkey/permissions/pkg/storage/mysql"
	"github.com/platinummonkey/permissions/pkg/storage/postgres"
	"github.com/platinummonkey/permissions/pkg/storage/sqlite"
	"github.com/platinummonkey/permissions/pkg/storage/sqlstore"
)

var version = "dev"

var (
	configPath      = flag.String("config", getEnv("PERMISSIONS_CONFIG", config.DefaultPath), "Path to config.json")
	shutdownTimeout = flag.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	warmUpWorkers   = flag.Int("warmup-workers", 4, "Workers re-resolving online players after each resync")
)

func main() {
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "permissionsd: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Level(), os.Stdout)
	log := logger.WithField("version", version)

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage is selected once; a failing backend aborts start-up
	store, err := openBackend(cfg.Storage(), logger, metrics)
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return fmt.Errorf("failed to initialize %s backend: %w", store.Kind(), err)
	}
	log.WithField("backend", store.Kind()).Info("Database initialized")

	backend := cache.New(store, cfg.CacheSize, cfg.SyncInterval(), metrics)
	registry := permissions.NewRegistry()
	tracker := presence.NewTracker(
		presence.WithJoinHook(presence.RegisterSubjects(backend)),
		presence.WithLogger(logger),
		presence.WithMetrics(metrics),
	)
	svc := permissions.NewService(backend, registry,
		permissions.WithDirectory(tracker),
		permissions.WithLogger(logger),
		permissions.WithMetrics(metrics),
	)

	var watcher *config.Watcher
	dispatcher := commands.NewDispatcher(svc,
		commands.WithSettings(cfg.Messages()),
		commands.WithReloader(func(ctx context.Context) (commands.Settings, error) {
			reloaded, err := watcher.Reload()
			if err != nil {
				return commands.Settings{}, err
			}
			return reloaded.Messages(), nil
		}),
		commands.WithLogger(logger),
		commands.WithMetrics(metrics),
	)
	watcher = config.NewWatcher(path, cfg, func(c *config.Config) {
		dispatcher.SetSettings(c.Messages())
		if c.Backend != cfg.Backend {
			log.WithField("backend", c.Backend).Warn("Backend changes take effect on restart")
		}
	}, logger)

	syncer := resync.New(backend, cfg.SyncInterval(),
		resync.WithAfterSync(resync.WarmUp(onlineIdentities(tracker), *warmUpWorkers, 10*time.Second,
			func(ctx context.Context, identity string) error {
				_, err := svc.PlayerGroups(ctx, identity)
				return err
			})),
		resync.WithLogger(logger),
		resync.WithMetrics(metrics),
	)

	var redisClient *redis.Client
	var bridge *cluster.Bridge
	if cfg.RedisURL != "" {
		redisClient, err = cluster.NewClient(cfg.RedisURL)
		if err != nil {
			store.Close()
			return err
		}
		bridge = cluster.NewBridge(redisClient, backend, registry,
			cluster.WithLogger(logger),
			cluster.WithMetrics(metrics),
		)
		log.WithField("node", bridge.Node()).Info("Cluster invalidation enabled")
	}

	srv := server.NewServer(dispatcher, tracker,
		server.WithHealth(observability.NewHealthChecker(store.DB(), redisClient, version)),
		server.WithPrometheus(promRegistry, metrics),
		server.WithCacheStats(backend),
		server.WithResync(syncer),
		server.WithLogger(logger),
	)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, *shutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		timeout := *shutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		stopErr := syncer.Stop(timeout)
		return errors.Join(stopErr, store.Close())
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := syncer.Start(gctx); err != nil {
		store.Close()
		return err
	}

	g.Go(func() error {
		log.WithField("addr", cfg.ListenAddr).Info("Admin API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

func openBackend(cfg storage.Config, logger logrus.FieldLogger, metrics *observability.Metrics) (*sqlstore.Store, error) {
	opts := []sqlstore.Option{
		sqlstore.WithLogger(logger),
		sqlstore.WithMetrics(metrics),
	}

	switch cfg.Type {
	case "mysql":
		return mysql.Open(mysql.Config{
			Host:     cfg.MySQLHost,
			Port:     cfg.MySQLPort,
			User:     cfg.MySQLUser,
			Password: cfg.MySQLPassword,
			Database: cfg.MySQLDatabase,
			Tables:   cfg.Tables,
			Pool:     sqlstore.DefaultPoolConfig(),
			Timeout:  10 * time.Second,
		}, opts...)
	case "postgres":
		return postgres.Open(postgres.Config{
			URL:    cfg.PostgresURL,
			Tables: cfg.Tables,
			Pool:   sqlstore.DefaultPoolConfig(),
		}, opts...)
	case "sqlite":
		return sqlite.Open(sqlite.ResolvePath(cfg.SQLitePath, "."), cfg.Tables, opts...)
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Type)
	}
}

// onlineIdentities lists connected players for cache warm-up
func onlineIdentities(tracker *presence.Tracker) func() []string {
	return func() []string {
		sessions := tracker.Sessions()
		ids := make([]string, 0, len(sessions))
		for _, s := range sessions {
			ids = append(ids, s.Identity)
		}
		return ids
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
