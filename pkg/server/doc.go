// Package server exposes the command surface and the live session directory
// over HTTP.
//
// # Routes
//
//	POST   /v1/rcon                 raw command body, plain-text reply
//	POST   /v1/console              {"sender", "message"} -> delivered messages
//	POST   /v1/chat                 {"sender", "message"} -> delivered messages
//	GET    /v1/sessions             connected players
//	POST   /v1/sessions             {"identity", "player_id", "tribe_id"}
//	DELETE /v1/sessions/{identity}
//	PUT    /v1/tribes/{id}/roster   {"members": [player ids]}
//	GET    /v1/cache/stats
//	GET    /v1/resync               interval, last run, running
//	POST   /v1/resync               run a resync now (409 while one is running)
//	GET    /metrics
//	GET    /health/live
//	GET    /health/ready
//
// Command failures are domain replies, not transport failures: RCON answers
// 200 with the error text, console and chat answer 200 with the red message
// and an "error" field.
package server
