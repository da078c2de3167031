// Package api defines the transport representation of jobs and the
// client used by the CLI to reach a running daemon. Server handlers in
// the daemon package and the CLI both speak these types, keeping the
// wire contract in one place.
package api
