// Package cli implements permctl, the command-line client of the permissions
// daemon's admin API.
//
// # Commands
//
// rcon: run any Permissions.* command and print the reply
//
//	permctl rcon Permissions.AddGroup VIP
//	permctl rcon Permissions.AddTimed 0002a1b2c3 VIP 24 0
//
// groups: show a player's or tribe's groups, or every group with its permissions
//
//	permctl groups -player 0002a1b2c3
//	permctl groups -tribe 123456
//	permctl groups
//
// sessions: list connected players
//
// resync: run a database resync now instead of waiting for the next tick
//
// health: print the readiness report; exits non-zero when the daemon is not ready
//
// Every command accepts -addr (default http://127.0.0.1:8085, or PERMCTL_ADDR).
package cli
