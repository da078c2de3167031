// Package pipeline runs one claimed job through its stages: acquire,
// extract (when needed), select device, transcribe, format.
//
// The runner owns the stage order, persists every status transition in
// order, accumulates temp artifacts in a cleanup set that is emptied
// synchronously before any terminal status is written, and converts
// stage errors into the job's structured failure record. Cancellation
// is observed at stage boundaries and inside the child-process stages
// through context cancellation.
package pipeline
