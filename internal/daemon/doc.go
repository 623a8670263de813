// Package daemon coordinates the long-running rudder process.
//
// It wires the printer controller client, the state-transition detector and
// the ingestion pipeline into a poll loop, serves the HTTP API, and holds a
// flock-based lock so only one daemon writes to a logbook at a time. Poll
// failures are logged and retried on the next tick; nothing the controller
// does stops the loop.
package daemon
