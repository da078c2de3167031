// Package device chooses the compute device for transcription.
//
// A policy comes from config or per-job options: auto, cpu, cuda (with
// an optional index), or mps. Selection probes the host, downgrades
// unavailable accelerators to CPU with a warning, and permits exactly
// one runtime fallback to CPU when an accelerator fails mid-run.
package device
