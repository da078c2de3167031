// Package transcribe drives the whisper CLI as a child process.
//
// The engine builds the command line from job options and the selected
// device, follows the CLI's verbose stdout to estimate progress against
// the known audio duration, and loads the ordered segment list from the
// JSON output file. Device-related failures are distinguished from
// general transcription failures so the caller can retry once on CPU.
package transcribe
