// Package logging configures slog output for the daemon and CLI.
//
// Two handler formats are supported: a human-oriented console format and
// JSON for log aggregation. Helpers expose typed attribute constructors,
// standardized field names, context-derived logger fields, and a progress
// sampler that keeps per-segment progress updates from flooding the log.
package logging
