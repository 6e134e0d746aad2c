// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo runs a one-off task with panic recovery, a timeout and error logging:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "register player", func(ctx context.Context) error {
//		return backend.AddPlayer(ctx, identity)
//	})
//
// WorkerPool is a fixed set of workers draining a bounded queue. The database
// resync runs on a single-worker pool so ticks never overlap:
//
//	pool := async.NewWorkerPool(ctx, 1, "database resync", 30*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//	pool.TrySubmit(syncer.run)
//
// Batch fans a slice out over a temporary pool and collects the errors. It is
// used to warm the cache for online players after a resync.
package async
