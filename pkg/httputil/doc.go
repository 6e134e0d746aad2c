// Package httputil provides the JSON, text and middleware helpers shared by the
// admin HTTP transport.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteText(w, http.StatusOK, reply)
//	httputil.WriteBadRequest(w, "sender is required")
//
// # Request Parsing
//
//	var req ConsoleRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	tribeID, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.MaxBytesMiddleware(1 << 20),
//	)(router)
package httputil
