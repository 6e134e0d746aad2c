// Package config loads the daemon configuration file and watches it for changes.
//
// # Overview
//
// The file uses the plugin's original config.json keys. JSON objects are decoded
// as JSON; anything else is decoded as YAML. Missing keys take the defaults from
// Default, and ClusterSyncTime is floored at 20 seconds.
//
//	{
//		"UseMysql": false,
//		"DbPathOverride": "",
//		"ClusterSyncTime": 60,
//		"HideAllPlayerSuccessMessages": false,
//		"SendMessagesAsNotification": false,
//		"TextSize": 1.5,
//		"DisplayTime": 3.0
//	}
//
// # Environment Overrides
//
// Secrets and deployment settings may come from the environment instead:
//
//	PERMISSIONS_BACKEND="postgres"  # sqlite, mysql, postgres
//	PERMISSIONS_MYSQL_PASS="..."
//	PERMISSIONS_POSTGRES_URL="postgres://localhost/permissions"
//	PERMISSIONS_REDIS_URL="redis://localhost:6379"
//	PERMISSIONS_LISTEN_ADDR="127.0.0.1:8085"
//	PERMISSIONS_LOG_LEVEL="info"  # debug, info, warn, error
//	PERMISSIONS_CLUSTER_SYNC_TIME="60"
//
// # Hot Reload
//
// A Watcher re-reads the file when it is written and hands the result to a
// callback. Only message settings are applied at runtime; the storage backend
// is chosen once at start-up.
//
//	w := config.NewWatcher(path, cfg, func(cfg *config.Config) {
//		dispatcher.SetSettings(cfg.Messages())
//	}, logger)
//	go w.Run(ctx)
package config
