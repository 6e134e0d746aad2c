// Package presence tracks which players are connected to this server and the
// tribe rosters they belong to.
//
// The resolution engine needs three live facts that the database does not hold:
// whether a player is online, which tribe the player is in right now, and how
// many of that tribe's members are connected. A Directory answers those
// questions; Tracker is the in-process implementation fed by the game host
// through the admin HTTP API (or directly in tests).
//
// # Usage
//
//	tracker := presence.NewTracker(
//	    presence.WithMetrics(metrics),
//	    presence.WithJoinHook(presence.RegisterSubjects(backend)),
//	)
//	tracker.SetTribeRoster(555, []int64{1, 2, 3})
//	tracker.Join(ctx, presence.Session{Identity: "eos-1", PlayerID: 1, TribeID: 555})
//
// A tribe's roster lists member player IDs. Online counts match the IDs of
// connected sessions against that roster.
package presence
