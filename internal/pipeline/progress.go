package pipeline

import (
	"context"
	"log/slog"
	"time"

	"scriber/internal/logging"
	"scriber/internal/queue"
)

const (
	progressBucketSize  = 5.0
	progressMinInterval = 2 * time.Second
)

// reporter publishes job progress to the store. Stage boundaries always
// write; within a stage, writes are throttled by percent bucket and a
// minimum interval, and the percent is clamped monotonic non-decreasing.
// A failed store write is logged and never aborts the job.
type reporter struct {
	store   *queue.Store
	logger  *slog.Logger
	job     *queue.Job
	sampler *logging.ProgressSampler
	floor   float64
}

func newReporter(store *queue.Store, logger *slog.Logger, job *queue.Job) *reporter {
	return &reporter{
		store:   store,
		logger:  logger,
		job:     job,
		sampler: logging.NewProgressSampler(progressBucketSize, progressMinInterval),
	}
}

// stage records the start of a stage at zero percent.
func (r *reporter) stage(ctx context.Context, stage, message string) {
	r.floor = 0
	r.sampler.Reset()
	r.job.SetProgress(stage, message, 0)
	r.write(ctx)
}

// progress records throttled in-stage progress.
func (r *reporter) progress(ctx context.Context, percent float64, message string) {
	if percent < r.floor {
		percent = r.floor
	}
	if percent > 100 {
		percent = 100
	}
	r.floor = percent
	if !r.sampler.ShouldEmit(percent, r.job.ProgressStage) {
		return
	}
	r.job.SetProgress(r.job.ProgressStage, message, percent)
	r.write(ctx)
}

// complete records the end of a stage at one hundred percent.
func (r *reporter) complete(ctx context.Context, message string) {
	r.floor = 100
	r.job.SetProgress(r.job.ProgressStage, message, 100)
	r.write(ctx)
}

func (r *reporter) write(ctx context.Context) {
	if err := r.store.UpdateProgress(ctx, r.job); err != nil {
		r.logger.Warn("progress write failed",
			logging.String(logging.FieldJobID, r.job.ID),
			logging.String(logging.FieldStage, r.job.ProgressStage),
			logging.Error(err))
	}
}
