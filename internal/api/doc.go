// Package api serves the admin HTTP API of the logging service.
//
// Routes under /api/v1:
//   - GET  /health    liveness and facade state (unauthenticated)
//   - GET  /channels  published routing table and debug state
//   - POST /debug     {"enabled": bool} toggles the debug channel
//   - POST /commit    republishes the routing table
//   - GET  /money     pages the money transaction index
//   - GET  /tail      websocket live tail (token in ?token=)
//
// Prometheus metrics are served at /metrics when a handler is supplied.
//
// Every route except /health and /metrics requires an HS256 bearer token
// minted by GenerateToken (see the "token" command).
package api
