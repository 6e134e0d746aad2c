// Package permissions resolves which groups a player or tribe belongs to and
// whether those groups grant a permission.
//
// # Resolution
//
// Service.PlayerGroups merges, in first-seen order without duplicates:
//
//  1. the player's static groups and active timed groups, read from the backend
//  2. when the player is online and in a tribe, the tribe's groups plus the
//     synthetic TribeSize:<N> and TribeOnline:<M> groups
//  3. groups computed by registered providers
//
// A group grants a permission when the permission, or the "*" wildcard, has
// been granted to it. Groups that no longer exist grant nothing.
//
// # Providers
//
// Other components inject groups by registering a Provider on the Registry:
//
//	registry.AddProvider(permissions.Provider{
//	    Name:            "donations",
//	    CacheByIdentity: true,
//	    Groups: func(ctx context.Context, identity string, tribeID *int64) []string {
//	        return donors.Groups(identity)
//	    },
//	})
//
// Results of caching providers are stored on the subject row and reused until
// the next backend resync.
//
// # Notifications
//
// Every membership mutation notifies the Registry's subscribers with the player
// identity (tribe 0) or the tribe ID (empty identity). RemovePlayerFromGroup and
// AddPlayerToTimedGroup notify both before and after the change. Group lifecycle
// and grant changes do not notify.
package permissions
