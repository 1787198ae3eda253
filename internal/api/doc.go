// Package api implements the HTTP REST API and WebSocket server for the scan console.
//
// This package provides:
//   - REST endpoints for controllers, scan units, macros and dispatch runs
//   - WebSocket hub for dispatch progress and registry change broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server is a thin layer over console.Service. Every mutation goes
// through the console so audit entries and change events are produced the
// same way for HTTP, CLI and MQTT callers. Dispatch endpoints return as soon
// as a run has started (202 Accepted); progress and completion arrive on the
// WebSocket channels dispatch.progress and dispatch.completed.
//
// # Security
//
// Operators log in with a username and password and receive a bearer token.
// Each route checks a permission derived from the token's role (viewer,
// operator, admin). WebSocket connections use single-use tickets to prevent
// token leakage in URLs.
package api
