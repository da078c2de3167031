package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewJob inserts a pending job for the given source and options.
func (s *Store) NewJob(ctx context.Context, kind SourceKind, sourceValue string, opts Options) (*Job, error) {
	if sourceValue == "" {
		return nil, errors.New("source value is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO jobs (
            id, source_kind, source_value, model, language, format,
            max_line_length, device, half_precision, status,
            progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		string(kind),
		sourceValue,
		opts.Model,
		nullableString(opts.Language),
		opts.Format,
		opts.MaxLineLength,
		opts.Device,
		boolToInt(opts.HalfPrecision),
		StatusPending,
		0.0,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil when no job exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	warnings, err := encodeWarnings(job.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET source_kind = ?, source_value = ?, model = ?, language = ?,
             format = ?, max_line_length = ?, device = ?, half_precision = ?,
             status = ?, progress_stage = ?, progress_percent = ?,
             progress_message = ?, result_path = ?, error_kind = ?,
             error_stage = ?, error_message = ?, warnings_json = ?,
             cancel_requested = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		string(job.SourceKind),
		job.SourceValue,
		job.Options.Model,
		nullableString(job.Options.Language),
		job.Options.Format,
		job.Options.MaxLineLength,
		job.Options.Device,
		boolToInt(job.Options.HalfPrecision),
		job.Status,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ResultPath),
		nullableString(job.ErrorKind),
		nullableString(job.ErrorStage),
		nullableString(job.ErrorMessage),
		nullableString(warnings),
		boolToInt(job.CancelRequested),
		nullableTime(job.LastHeartbeat),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress fields, leaving status,
// errors, and heartbeat untouched.
func (s *Store) UpdateProgress(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set, oldest first. With no
// statuses every job is returned.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a job record by identifier.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearFinished removes jobs in terminal statuses.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?)`,
		StatusDone, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear finished: %w", err)
	}
	return res.RowsAffected()
}
