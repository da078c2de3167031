package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"scriber/internal/config"
	"scriber/internal/device"
	"scriber/internal/extract"
	"scriber/internal/logging"
	"scriber/internal/media"
	"scriber/internal/queue"
	"scriber/internal/services"
	"scriber/internal/subtitle"
	"scriber/internal/transcribe"
)

// errCancelled marks a cooperative stop observed at a stage boundary.
var errCancelled = errors.New("job cancelled")

// Acquirer resolves a job source to a local file.
type Acquirer interface {
	Acquire(ctx context.Context, jobID string, source media.Source) (media.Acquisition, error)
}

// Extractor probes sources and produces normalized audio.
type Extractor interface {
	Probe(ctx context.Context, source string) (media.Result, error)
	Extract(ctx context.Context, source, dest string) error
}

// Transcriber runs speech recognition over normalized audio.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request, onProgress transcribe.ProgressFunc) ([]transcribe.Segment, error)
}

// Runner executes claimed jobs.
type Runner struct {
	cfg         *config.Config
	store       *queue.Store
	logger      *slog.Logger
	acquirer    Acquirer
	extractor   Extractor
	transcriber Transcriber
	probes      device.Probes
}

// New wires a Runner with the real stage implementations.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:         cfg,
		store:       store,
		logger:      logger.With(logging.String(logging.FieldComponent, "pipeline")),
		acquirer:    media.NewAcquirer(cfg, logger),
		extractor:   extract.New(cfg, logger),
		transcriber: transcribe.New(cfg, logger),
		probes:      device.DefaultProbes(),
	}
}

// WithAcquirer overrides the acquisition stage (for testing).
func (r *Runner) WithAcquirer(a Acquirer) { r.acquirer = a }

// WithExtractor overrides the extraction stage (for testing).
func (r *Runner) WithExtractor(e Extractor) { r.extractor = e }

// WithTranscriber overrides the transcription stage (for testing).
func (r *Runner) WithTranscriber(tr Transcriber) { r.transcriber = tr }

// WithDeviceProbes overrides accelerator detection (for testing).
func (r *Runner) WithDeviceProbes(p device.Probes) { r.probes = p }

// Run drives a claimed job to a terminal status. The job must already
// be in the acquiring status. The returned error reflects the failure
// recorded on the job; callers use it for logging only.
func (r *Runner) Run(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, r.logger)
	cleanup := &cleanupSet{}
	rep := newReporter(r.store, logger, job)

	err := r.run(ctx, job, cleanup, rep, logger)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errCancelled) || errors.Is(err, context.Canceled):
		// Context cancellation without a cancel request means the
		// daemon is shutting down; the row stays claimed so the
		// release pass can return it to pending.
		if r.cancelRequested(job) {
			r.finishCancelled(job, cleanup, logger)
		} else {
			cleanup.run(logger)
			logger.Info("job interrupted by shutdown, leaving for release")
		}
		return errCancelled
	default:
		r.finishFailed(job, cleanup, logger, err)
		return err
	}
}

func (r *Runner) run(ctx context.Context, job *queue.Job, cleanup *cleanupSet, rep *reporter, logger *slog.Logger) error {
	// Stage-scoped contexts carry the stage name into component logs.
	stageCtx := func(status queue.Status) context.Context {
		return services.WithStage(ctx, string(status))
	}

	// Acquire. The claim already moved the job to acquiring.
	sctx := stageCtx(queue.StatusAcquiring)
	rep.stage(sctx, string(queue.StatusAcquiring), "acquiring source")
	acquisition, err := r.acquirer.Acquire(sctx, job.ID, media.Source{
		Kind:  string(job.SourceKind),
		Value: job.SourceValue,
	})
	cleanup.add(acquisition.Cleanup...)
	if err != nil {
		return err
	}
	rep.complete(sctx, "source ready")

	if err := r.checkCancel(ctx, job); err != nil {
		return err
	}

	// Probe and, when required, extract.
	probed, err := r.extractor.Probe(sctx, acquisition.Path)
	if err != nil {
		return err
	}
	audioPath := acquisition.Path
	if extract.NeedsExtraction(probed) {
		if err := r.transition(ctx, job, queue.StatusExtracting); err != nil {
			return err
		}
		sctx = stageCtx(queue.StatusExtracting)
		rep.stage(sctx, string(queue.StatusExtracting), "normalizing audio")

		jobDir := filepath.Join(r.cfg.Paths.StagingDir, job.ID)
		if err := os.MkdirAll(jobDir, 0o755); err != nil {
			return services.Wrap(services.ErrInternal, string(queue.StatusExtracting), "create staging dir", "", err)
		}
		cleanup.add(jobDir)
		audioPath = filepath.Join(jobDir, "audio.wav")
		if err := r.extractor.Extract(sctx, acquisition.Path, audioPath); err != nil {
			return err
		}
		rep.complete(sctx, "audio normalized")
	} else {
		logger.Info("source already normalized, skipping extraction")
	}

	if err := r.checkCancel(ctx, job); err != nil {
		return err
	}

	// Select device.
	if err := r.transition(ctx, job, queue.StatusSelectingDevice); err != nil {
		return err
	}
	sctx = stageCtx(queue.StatusSelectingDevice)
	rep.stage(sctx, string(queue.StatusSelectingDevice), "selecting compute device")
	policy, err := device.ParsePolicy(job.Options.Device)
	if err != nil {
		return err
	}
	selection := device.Select(sctx, policy, job.Options.HalfPrecision, r.probes)
	for _, warning := range selection.Warnings {
		job.AddWarning(warning)
		logger.Warn(warning)
	}
	rep.complete(sctx, fmt.Sprintf("using %s", selection.Device))

	if err := r.checkCancel(ctx, job); err != nil {
		return err
	}

	// Transcribe, with a single CPU retry after accelerator failure.
	if err := r.transition(ctx, job, queue.StatusTranscribing); err != nil {
		return err
	}
	sctx = stageCtx(queue.StatusTranscribing)
	rep.stage(sctx, string(queue.StatusTranscribing), "transcribing")
	segments, err := r.transcribeWithFallback(sctx, job, rep, logger, selection, audioPath, probed.DurationSeconds(), cleanup)
	if err != nil {
		return err
	}
	rep.complete(sctx, "transcription finished")

	if err := r.checkCancel(ctx, job); err != nil {
		return err
	}

	// Format and publish the result.
	if err := r.transition(ctx, job, queue.StatusFormatting); err != nil {
		return err
	}
	sctx = stageCtx(queue.StatusFormatting)
	rep.stage(sctx, string(queue.StatusFormatting), "rendering subtitles")
	format, err := subtitle.ParseFormat(job.Options.Format)
	if err != nil {
		return err
	}
	document, err := subtitle.Render(format, toSubtitleSegments(segments), job.Options.MaxLineLength)
	if err != nil {
		return err
	}
	resultPath, err := r.writeResult(job.ID, format, document)
	if err != nil {
		return err
	}

	// Temp artifacts go away before the terminal status is visible.
	cleanup.run(logger)

	job.ResultPath = resultPath
	job.Status = queue.StatusDone
	job.SetProgress(string(queue.StatusFormatting), "completed", 100)
	job.LastHeartbeat = nil
	if err := r.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrInternal, string(queue.StatusFormatting), "persist result", "", err)
	}
	logger.Info("job completed", logging.String("result", resultPath))
	return nil
}

func (r *Runner) transcribeWithFallback(
	ctx context.Context,
	job *queue.Job,
	rep *reporter,
	logger *slog.Logger,
	selection device.Selection,
	audioPath string,
	duration float64,
	cleanup *cleanupSet,
) ([]transcribe.Segment, error) {
	jobDir := filepath.Join(r.cfg.Paths.StagingDir, job.ID)
	outputDir := filepath.Join(jobDir, "whisper")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrInternal, string(queue.StatusTranscribing), "create output dir", "", err)
	}
	cleanup.add(jobDir)

	onProgress := func(percent float64, message string) {
		rep.progress(ctx, percent, message)
	}
	req := transcribe.Request{
		AudioPath:       audioPath,
		OutputDir:       outputDir,
		Model:           job.Options.Model,
		Language:        job.Options.Language,
		Device:          selection.Device,
		HalfPrecision:   selection.HalfPrecision,
		DurationSeconds: duration,
	}

	segments, err := r.transcriber.Transcribe(ctx, req, onProgress)
	if err == nil {
		return segments, nil
	}
	if !selection.Accelerator || !transcribe.IsDeviceFailure(err) {
		return nil, err
	}

	// One downgrade to CPU; a second failure is final.
	fallback := device.CPUFallback(selection.Device)
	for _, warning := range fallback.Warnings {
		job.AddWarning(warning)
		logger.Warn(warning)
	}
	req.Device = fallback.Device
	req.HalfPrecision = false

	return r.transcriber.Transcribe(ctx, req, onProgress)
}

// checkCancel observes cancellation at a stage boundary: either the
// run context was cancelled in-process or another process set the
// store flag.
func (r *Runner) checkCancel(ctx context.Context, job *queue.Job) error {
	if ctx.Err() != nil {
		return errCancelled
	}
	current, err := r.store.GetByID(ctx, job.ID)
	if err != nil || current == nil {
		return nil
	}
	if current.CancelRequested {
		job.CancelRequested = true
		return errCancelled
	}
	return nil
}

func (r *Runner) transition(ctx context.Context, job *queue.Job, to queue.Status) error {
	if !queue.CanTransition(job.Status, to) {
		return services.Wrap(services.ErrInternal, string(to), "transition",
			fmt.Sprintf("illegal transition %s -> %s", job.Status, to), nil)
	}
	job.Status = to
	if err := r.store.Update(ctx, job); err != nil {
		return services.Wrap(services.ErrInternal, string(to), "persist status", "", err)
	}
	return nil
}

func (r *Runner) writeResult(jobID string, format subtitle.Format, document string) (string, error) {
	if err := os.MkdirAll(r.cfg.Paths.ResultsDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrInternal, string(queue.StatusFormatting), "create results dir", "", err)
	}
	path := filepath.Join(r.cfg.Paths.ResultsDir, jobID+format.Extension())
	if err := os.WriteFile(path, []byte(document), 0o644); err != nil {
		return "", services.Wrap(services.ErrInternal, string(queue.StatusFormatting), "write result", "", err)
	}
	return path, nil
}

// finishFailed empties the cleanup set, then persists the failure
// record. Cleanup strictly precedes the terminal write.
func (r *Runner) finishFailed(job *queue.Job, cleanup *cleanupSet, logger *slog.Logger, runErr error) {
	cleanup.run(logger)
	details := services.Details(runErr)
	stage := details.Stage
	if stage == "" {
		stage = job.ProgressStage
	}
	job.SetFailed(string(details.Kind), stage, services.UserMessage(runErr))
	if err := r.store.Update(context.Background(), job); err != nil {
		logger.Error("failed to persist failure record", logging.Error(err))
	}
	logger.Error("job failed",
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldStage, stage),
		logging.Error(runErr))
}

// cancelRequested reports whether cancellation was asked for, consulting
// the store when the in-memory flag was never refreshed. The run context
// is dead by the time this is called, so the read uses a fresh one.
func (r *Runner) cancelRequested(job *queue.Job) bool {
	if job.CancelRequested {
		return true
	}
	current, err := r.store.GetByID(context.Background(), job.ID)
	if err != nil || current == nil {
		return false
	}
	return current.CancelRequested
}

// finishCancelled empties the cleanup set, then persists the cancelled
// status.
func (r *Runner) finishCancelled(job *queue.Job, cleanup *cleanupSet, logger *slog.Logger) {
	cleanup.run(logger)
	job.SetCancelled()
	if err := r.store.Update(context.Background(), job); err != nil {
		logger.Error("failed to persist cancelled status", logging.Error(err))
	}
	logger.Info("job cancelled")
}

func toSubtitleSegments(segments []transcribe.Segment) []subtitle.Segment {
	out := make([]subtitle.Segment, 0, len(segments))
	for _, segment := range segments {
		out = append(out, subtitle.Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}
	return out
}
