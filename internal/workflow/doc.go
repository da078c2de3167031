// Package workflow runs the worker pool that drains the job queue.
//
// A Manager starts N workers that poll the store for pending jobs,
// claim them atomically, and hand each claim to the pipeline runner.
// Alongside the workers it runs a cancellation watcher that turns
// stored cancel requests into context cancellation for in-flight jobs,
// and a reclaim loop that returns jobs from crashed workers to the
// pending queue once their heartbeat goes stale.
package workflow
