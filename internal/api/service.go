package api

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"scriber/internal/config"
	"scriber/internal/device"
	"scriber/internal/language"
	"scriber/internal/queue"
	"scriber/internal/services"
	"scriber/internal/subtitle"
)

// JobStore abstracts queue persistence interactions needed by the
// service.
type JobStore interface {
	NewJob(ctx context.Context, kind queue.SourceKind, sourceValue string, opts queue.Options) (*queue.Job, error)
	GetByID(ctx context.Context, id string) (*queue.Job, error)
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	RequestCancel(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// JobService validates submissions and exposes queue operations as
// API DTOs.
type JobService struct {
	cfg   *config.Config
	store JobStore
}

// NewJobService constructs a JobService around the provided store.
func NewJobService(cfg *config.Config, store JobStore) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{cfg: cfg, store: store}
}

// Submit validates a request, fills option defaults from configuration,
// and creates a pending job.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (JobView, error) {
	kind, err := parseSourceKind(req.SourceKind)
	if err != nil {
		return JobView{}, err
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return JobView{}, services.Wrap(services.ErrUnsupportedFormat, "submit", "validate source", "source is required", nil)
	}

	opts, err := s.resolveOptions(req)
	if err != nil {
		return JobView{}, err
	}

	job, err := s.store.NewJob(ctx, kind, source, opts)
	if err != nil {
		return JobView{}, services.Wrap(services.ErrInternal, "submit", "create job", "", err)
	}
	return FromJob(job), nil
}

// resolveOptions merges request options over configuration defaults and
// normalizes each field. Validation happens here so invalid submissions
// are rejected before a job record exists.
func (s *JobService) resolveOptions(req SubmitRequest) (queue.Options, error) {
	opts := queue.Options{
		Model:         strings.TrimSpace(req.Model),
		Language:      strings.TrimSpace(req.Language),
		Format:        strings.TrimSpace(req.Format),
		MaxLineLength: req.MaxLineLength,
		Device:        strings.TrimSpace(req.Device),
		HalfPrecision: req.HalfPrecision,
	}
	if opts.Model == "" {
		opts.Model = s.cfg.Transcriber.Model
	}
	if opts.Language == "" {
		opts.Language = s.cfg.Transcriber.Language
	}
	if opts.Format == "" {
		opts.Format = s.cfg.Subtitles.Format
	}
	if opts.MaxLineLength == 0 {
		opts.MaxLineLength = s.cfg.Subtitles.MaxLineLength
	}
	if opts.Device == "" {
		opts.Device = s.cfg.Transcriber.Device
	}
	if !opts.HalfPrecision {
		opts.HalfPrecision = s.cfg.Transcriber.HalfPrecision
	}

	if opts.Language != "" {
		code, err := language.Normalize(opts.Language)
		if err != nil {
			return queue.Options{}, err
		}
		opts.Language = code
	}
	if _, err := subtitle.ParseFormat(opts.Format); err != nil {
		return queue.Options{}, err
	}
	if _, err := device.ParsePolicy(opts.Device); err != nil {
		return queue.Options{}, err
	}
	if opts.MaxLineLength < 0 {
		return queue.Options{}, services.Wrap(services.ErrUnsupportedFormat, "submit", "validate line length", "max line length must be positive", nil)
	}
	return opts, nil
}

func parseSourceKind(value string) (queue.SourceKind, error) {
	switch queue.SourceKind(strings.TrimSpace(strings.ToLower(value))) {
	case queue.SourceLocal:
		return queue.SourceLocal, nil
	case queue.SourceUpload:
		return queue.SourceUpload, nil
	case queue.SourceURL:
		return queue.SourceURL, nil
	default:
		return "", services.Wrap(services.ErrUnsupportedFormat, "submit", "validate source kind",
			"source kind must be local, upload, or url", nil)
	}
}

// List returns jobs filtered by status, newest first.
func (s *JobService) List(ctx context.Context, statuses ...queue.Status) ([]JobView, error) {
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return SortJobsNewestFirst(FromJobs(jobs)), nil
}

// Describe fetches a single job. Returns nil when the id is unknown.
func (s *JobService) Describe(ctx context.Context, id string) (*JobView, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	view := FromJob(job)
	return &view, nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeJobStats(stats), nil
}

// Cancel requests cancellation for a job.
func (s *JobService) Cancel(ctx context.Context, id string) (bool, error) {
	return s.store.RequestCancel(ctx, id)
}

// Delete removes a job record along with its artifacts. A still-running
// job gets a cancel request first so its worker stops writing.
func (s *JobService) Delete(ctx context.Context, id string) (bool, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if !job.Status.IsTerminal() {
		if _, err := s.store.RequestCancel(ctx, id); err != nil {
			return false, err
		}
	}
	removeJobArtifacts(s.cfg, job)
	return s.store.Delete(ctx, id)
}

func removeJobArtifacts(cfg *config.Config, job *queue.Job) {
	if job.ResultPath != "" {
		_ = os.Remove(job.ResultPath)
	}
	if cfg != nil && cfg.Paths.StagingDir != "" {
		_ = os.RemoveAll(filepath.Join(cfg.Paths.StagingDir, job.ID))
	}
	if cfg != nil && cfg.Paths.UploadDir != "" && job.SourceKind == queue.SourceUpload {
		// Uploads live in their own directory under the upload dir; the
		// directory name is independent of the job id.
		if dir := uploadedSourceDir(cfg.Paths.UploadDir, job.SourceValue); dir != "" {
			_ = os.RemoveAll(dir)
		}
	}
}

// uploadedSourceDir returns the per-upload directory holding source,
// or "" when source does not resolve to a child of uploadDir.
func uploadedSourceDir(uploadDir, source string) string {
	if source == "" {
		return ""
	}
	dir := filepath.Dir(source)
	rel, err := filepath.Rel(uploadDir, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return dir
}
