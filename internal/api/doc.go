// Package api implements the HTTP REST API and WebSocket server for chimed.
//
// This package provides:
//   - REST endpoints for the broker session: settings, connect, subscribe, publish
//   - A status endpoint with the connection state and message history
//   - WebSocket hub relaying state and message changes as they happen
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API server is a thin layer over session.Manager. Requests drive the
// manager; the manager's appstate.Model is observed and every change is
// broadcast to WebSocket clients subscribed to the matching channel:
//
//	session.state_changed
//	session.message_received
//	session.history_cleared
//
// # Graceful Degradation
//
// The server runs without a configured broker. Status, settings and
// WebSocket connections work; session commands answer 409 until a broker
// host is saved.
package api
