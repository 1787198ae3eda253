// Package console ties the registry, macro library and dispatch engine into
// the operations an operator performs: build a command sequence for a
// controller, send it, broadcast a macro to the enabled scan units, and keep
// the macro library in step with the controllers' current selections.
//
// Finished runs are recorded in dispatch history and announced to whatever
// observers are configured (MQTT, WebSocket, InfluxDB). Every operator
// action is written to the audit log.
//
// All collaborators except the registry and the engine are optional.
package console
