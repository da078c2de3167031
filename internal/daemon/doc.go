// Package daemon hosts the long-running scriber process: it enforces
// single-instance execution with a lock file, owns the HTTP API the
// CLI talks to, and supervises the workflow manager.
package daemon
