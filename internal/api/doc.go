// Package api implements the HTTP API and WebSocket stream for a running
// tunnel session.
//
// Endpoints (all under /api/v1):
//   - GET  /health      liveness, no auth
//   - GET  /status      session state and counters
//   - GET  /addresses   recorded group addresses
//   - GET  /devices     recorded source devices
//   - GET  /gateways    recorded gateways
//   - POST /telegrams   send a GroupValue_Write or GroupValue_Read
//   - GET  /ws          live stream of telegram, gateway and state events
//
// GET /metrics serves the Prometheus registry when one is supplied.
//
// # Security
//
// With api.jwt.secret empty every endpoint is open. Otherwise requests
// carry "Authorization: Bearer <token>" (or ?token= for WebSocket
// clients that cannot set headers); POST /telegrams needs the operator
// role. Tokens are minted with the token command.
package api
