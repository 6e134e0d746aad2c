// Package cluster keeps the subject caches of several servers that share one
// networked database consistent.
//
// A Bridge subscribes to the local permissions.Registry and publishes every
// membership change on a Redis channel. Bridges on other servers drop the
// affected player or tribe from their cache, so the next read goes to the
// shared database. Messages carry the publishing node's ID and a node ignores
// its own messages.
//
// Group creation, deletion and grant changes are broadcast too. A changed
// group is dropped from the receivers' group cache; a deleted group purges
// their whole cache, since the deletion rewrote every subject holding it.
//
//	client, err := cluster.NewClient(cfg.RedisURL)
//	bridge := cluster.NewBridge(client, cacheStore, registry, cluster.WithLogger(logger))
//	go bridge.Run(ctx)
package cluster
