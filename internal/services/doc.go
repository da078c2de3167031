// Package services provides shared helpers for the pipeline stages:
// the error classification scheme used to map stage failures to stable
// error kinds, and context plumbing for job-scoped metadata.
package services
