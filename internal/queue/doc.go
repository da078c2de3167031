// Package queue persists transcription jobs in SQLite and owns their
// lifecycle rules.
//
// The Store manages connections, schema initialization, atomic claiming
// of pending work, heartbeat tracking, stale-job recovery, and the status
// transition graph. Jobs carry source, options, progress, warnings, and
// failure records so the pipeline stages can coordinate without extra
// state.
//
// The database is transient storage for in-flight and recently finished
// jobs, not a long-term archive. Schema changes bump the version in
// schema.go; users clear the database to adopt the new schema.
package queue
