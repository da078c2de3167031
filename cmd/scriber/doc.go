// Command scriber is the CLI for the scriber transcription service.
// Most subcommands talk to a running scriberd over its HTTP API; the
// run subcommand processes a single source in-process without a
// daemon.
package main
