package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// claimAttempts bounds the compare-and-swap loop when several workers
// race for the same pending job.
const claimAttempts = 3

// Claim atomically moves the oldest pending job to acquiring and returns
// it. Returns nil when no pending work exists. The compare-and-swap
// keeps delivery safe when multiple workers poll concurrently.
func (s *Store) Claim(ctx context.Context) (*Job, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		row := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
			StatusPending,
		)
		var id string
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select pending job: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs
             SET status = ?, last_heartbeat = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusAcquiring,
			now,
			now,
			id,
			StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 1 {
			return s.GetByID(ctx, id)
		}
		// Lost the race; another worker took it. Try the next candidate.
	}
	return nil, nil
}

// RequestCancel flips the cancellation flag for a non-terminal job.
// Returns false when the job is already terminal or unknown.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusDone, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CancelRequested returns ids of in-flight jobs whose cancellation flag
// is set. Pending jobs are resolved directly to cancelled by the caller;
// this feed exists for jobs already claimed by a worker.
func (s *Store) CancelRequested(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM jobs WHERE cancel_requested = 1 AND status NOT IN (?, ?, ?)`,
		StatusDone, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("query cancel requests: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateHeartbeat refreshes the liveness timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns jobs whose worker stopped heartbeating
// to pending so another worker can pick them up after a crash.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_stage = NULL, progress_percent = 0,
             progress_message = 'reclaimed after worker loss',
             last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?, ?)
           AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending,
		now.Format(time.RFC3339Nano),
		StatusAcquiring,
		StatusExtracting,
		StatusSelectingDevice,
		StatusTranscribing,
		StatusFormatting,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseProcessing returns all in-flight jobs to pending. Called during
// daemon shutdown so work resumes cleanly on restart.
func (s *Store) ReleaseProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_stage = NULL, progress_percent = 0,
             progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?, ?)`,
		StatusPending,
		DaemonStopMessage,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusAcquiring,
		StatusExtracting,
		StatusSelectingDevice,
		StatusTranscribing,
		StatusFormatting,
	)
	if err != nil {
		return 0, fmt.Errorf("release processing jobs: %w", err)
	}
	return res.RowsAffected()
}
