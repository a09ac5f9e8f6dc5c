// Package api implements the HTTP and WebSocket surface of the AC bridge.
//
// This package provides:
//   - WebSocket sessions for dashboards, on "/" and on the configured path
//   - REST helpers: health, device snapshot, device delete, lifecycle history
//   - JSON system metrics at /api/v1/metrics and Prometheus at /metrics
//   - Optional static hosting of the dashboard build
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The server holds no bridge state. Each WebSocket connection becomes a
// WSClient implementing bridge.Session; its connect, frames and disconnect
// are delivered to the bridge Router as events. The Hub only keeps the
// connections so they can be closed on shutdown.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Graceful Degradation
//
// The server runs without the broker connection: snapshots and sessions
// keep working and /api/v1/health reports "degraded". The history endpoint
// answers 503 when the SQLite store is disabled.
package api
