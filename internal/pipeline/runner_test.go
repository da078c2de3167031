package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriber/internal/device"
	"scriber/internal/media"
	"scriber/internal/queue"
	"scriber/internal/services"
	"scriber/internal/testsupport"
	"scriber/internal/transcribe"
)

type fakeAcquirer struct {
	acquisition media.Acquisition
	err         error
	calls       int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, jobID string, source media.Source) (media.Acquisition, error) {
	f.calls++
	return f.acquisition, f.err
}

type fakeExtractor struct {
	probeResult  media.Result
	probeErr     error
	extractErr   error
	extractCalls int
	afterExtract func()
}

func (f *fakeExtractor) Probe(ctx context.Context, source string) (media.Result, error) {
	return f.probeResult, f.probeErr
}

func (f *fakeExtractor) Extract(ctx context.Context, source, dest string) error {
	f.extractCalls++
	if f.extractErr != nil {
		return f.extractErr
	}
	if err := os.WriteFile(dest, []byte("RIFF"), 0o644); err != nil {
		return err
	}
	if f.afterExtract != nil {
		f.afterExtract()
	}
	return nil
}

type fakeTranscriber struct {
	segments []transcribe.Segment
	errs     []error
	requests []transcribe.Request
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req transcribe.Request, onProgress transcribe.ProgressFunc) ([]transcribe.Segment, error) {
	call := len(f.requests)
	f.requests = append(f.requests, req)
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if onProgress != nil {
		onProgress(50, "transcribed 00:05 of 00:10")
	}
	return f.segments, nil
}

func videoProbe() media.Result {
	return media.Result{
		Streams: []media.Stream{
			{CodecType: "video", CodecName: "h264"},
			{CodecType: "audio", CodecName: "aac", SampleRate: "44100", Channels: 2},
		},
		Format: media.Format{FormatName: "mov,mp4,m4a", Duration: "10.0"},
	}
}

func normalizedProbe() media.Result {
	return media.Result{
		Streams: []media.Stream{
			{CodecType: "audio", CodecName: "pcm_s16le", SampleRate: "16000", Channels: 1},
		},
		Format: media.Format{FormatName: "wav", Duration: "10.0"},
	}
}

func defaultSegments() []transcribe.Segment {
	return []transcribe.Segment{
		{Start: 0, End: 2.5, Text: "hello there"},
		{Start: 2.5, End: 5, Text: "general"},
	}
}

func newTestRunner(t *testing.T) (*Runner, *queue.Store, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := New(cfg, store, nil)
	runner.WithDeviceProbes(device.Probes{
		CUDA: func(context.Context) bool { return false },
		MPS:  func() bool { return false },
	})
	return runner, store, cfg.Paths.StagingDir
}

func claimJob(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()

	job, err := store.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if job == nil {
		t.Fatal("Claim returned no job")
	}
	return job
}

func TestRunExtractsTranscribesAndWritesResult(t *testing.T) {
	runner, store, stagingDir := newTestRunner(t)

	sourcePath := filepath.Join(t.TempDir(), "input.mp4")
	testsupport.WriteFile(t, sourcePath, 256)
	testsupport.NewJob(t, store, queue.SourceLocal, sourcePath)
	job := claimJob(t, store)

	extractor := &fakeExtractor{probeResult: videoProbe()}
	engine := &fakeTranscriber{segments: defaultSegments()}
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeVideo}})
	runner.WithExtractor(extractor)
	runner.WithTranscriber(engine)

	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if extractor.extractCalls != 1 {
		t.Fatalf("extract calls = %d, want 1", extractor.extractCalls)
	}
	if len(engine.requests) != 1 {
		t.Fatalf("transcribe calls = %d, want 1", len(engine.requests))
	}
	if engine.requests[0].Device != "cpu" {
		t.Fatalf("device = %q, want cpu", engine.requests[0].Device)
	}

	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusDone {
		t.Fatalf("status = %s, want done", stored.Status)
	}
	if stored.ProgressPercent != 100 {
		t.Fatalf("progress = %v, want 100", stored.ProgressPercent)
	}
	if !strings.HasSuffix(stored.ResultPath, job.ID+".srt") {
		t.Fatalf("result path = %q", stored.ResultPath)
	}
	content, err := os.ReadFile(stored.ResultPath)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if !strings.Contains(string(content), "hello there") {
		t.Fatalf("result missing segment text: %q", content)
	}

	if _, err := os.Stat(filepath.Join(stagingDir, job.ID)); !os.IsNotExist(err) {
		t.Fatalf("staging dir survived completion: %v", err)
	}
}

func TestRunSkipsExtractionForNormalizedAudio(t *testing.T) {
	runner, store, _ := newTestRunner(t)

	sourcePath := filepath.Join(t.TempDir(), "input.wav")
	testsupport.WriteFile(t, sourcePath, 128)
	testsupport.NewJob(t, store, queue.SourceLocal, sourcePath)
	job := claimJob(t, store)

	extractor := &fakeExtractor{probeResult: normalizedProbe()}
	engine := &fakeTranscriber{segments: defaultSegments()}
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeAudio}})
	runner.WithExtractor(extractor)
	runner.WithTranscriber(engine)

	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if extractor.extractCalls != 0 {
		t.Fatalf("extract calls = %d, want 0", extractor.extractCalls)
	}
	if engine.requests[0].AudioPath != sourcePath {
		t.Fatalf("audio path = %q, want source", engine.requests[0].AudioPath)
	}
}

func TestRunFallsBackToCPUAfterDeviceFailure(t *testing.T) {
	runner, store, _ := newTestRunner(t)
	runner.WithDeviceProbes(device.Probes{
		CUDA: func(context.Context) bool { return true },
		MPS:  func() bool { return false },
	})

	sourcePath := filepath.Join(t.TempDir(), "input.wav")
	testsupport.WriteFile(t, sourcePath, 128)
	testsupport.NewJob(t, store, queue.SourceLocal, sourcePath)
	job := claimJob(t, store)

	deviceErr := services.Wrap(services.ErrDeviceError, "transcribing", "run whisper", "CUDA out of memory", nil)
	engine := &fakeTranscriber{segments: defaultSegments(), errs: []error{deviceErr}}
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeAudio}})
	runner.WithExtractor(&fakeExtractor{probeResult: normalizedProbe()})
	runner.WithTranscriber(engine)

	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(engine.requests) != 2 {
		t.Fatalf("transcribe calls = %d, want 2", len(engine.requests))
	}
	if engine.requests[0].Device != "cuda" {
		t.Fatalf("first device = %q, want cuda", engine.requests[0].Device)
	}
	if engine.requests[1].Device != "cpu" {
		t.Fatalf("second device = %q, want cpu", engine.requests[1].Device)
	}
	if engine.requests[1].HalfPrecision {
		t.Fatal("half precision not cleared on cpu retry")
	}

	stored, _ := store.GetByID(context.Background(), job.ID)
	if stored.Status != queue.StatusDone {
		t.Fatalf("status = %s, want done", stored.Status)
	}
	found := false
	for _, warning := range stored.Warnings {
		if strings.Contains(warning, "retrying on cpu") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing fallback warning: %v", stored.Warnings)
	}
}

func TestRunSecondDeviceFailureIsFatal(t *testing.T) {
	runner, store, _ := newTestRunner(t)
	runner.WithDeviceProbes(device.Probes{
		CUDA: func(context.Context) bool { return true },
		MPS:  func() bool { return false },
	})

	sourcePath := filepath.Join(t.TempDir(), "input.wav")
	testsupport.WriteFile(t, sourcePath, 128)
	testsupport.NewJob(t, store, queue.SourceLocal, sourcePath)
	job := claimJob(t, store)

	deviceErr := services.Wrap(services.ErrDeviceError, "transcribing", "run whisper", "CUDA out of memory", nil)
	generalErr := services.Wrap(services.ErrTranscriptionFailed, "transcribing", "run whisper", "exit status 1", nil)
	engine := &fakeTranscriber{errs: []error{deviceErr, generalErr}}
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeAudio}})
	runner.WithExtractor(&fakeExtractor{probeResult: normalizedProbe()})
	runner.WithTranscriber(engine)

	if err := runner.Run(context.Background(), job); err == nil {
		t.Fatal("Run succeeded, want failure")
	}
	if len(engine.requests) != 2 {
		t.Fatalf("transcribe calls = %d, want 2", len(engine.requests))
	}

	stored, _ := store.GetByID(context.Background(), job.ID)
	if stored.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if stored.ErrorKind != string(services.KindTranscriptionFailed) {
		t.Fatalf("error kind = %q", stored.ErrorKind)
	}
	if stored.ErrorStage != "transcribing" {
		t.Fatalf("error stage = %q", stored.ErrorStage)
	}
}

func TestRunFailureCleansStagingAndRecordsDetails(t *testing.T) {
	runner, store, stagingDir := newTestRunner(t)

	sourcePath := filepath.Join(t.TempDir(), "input.mp4")
	testsupport.WriteFile(t, sourcePath, 256)
	testsupport.NewJob(t, store, queue.SourceLocal, sourcePath)
	job := claimJob(t, store)

	extractErr := services.Wrap(services.ErrExtractionFailed, "extracting", "run ffmpeg", "no audio", nil)
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeVideo}})
	runner.WithExtractor(&fakeExtractor{probeResult: videoProbe(), extractErr: extractErr})
	runner.WithTranscriber(&fakeTranscriber{})

	if err := runner.Run(context.Background(), job); err == nil {
		t.Fatal("Run succeeded, want failure")
	}

	stored, _ := store.GetByID(context.Background(), job.ID)
	if stored.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if stored.ErrorKind != string(services.KindExtractionFailed) {
		t.Fatalf("error kind = %q", stored.ErrorKind)
	}
	if stored.ErrorMessage == "" {
		t.Fatal("missing error message")
	}

	if _, err := os.Stat(filepath.Join(stagingDir, job.ID)); !os.IsNotExist(err) {
		t.Fatalf("staging dir survived failure: %v", err)
	}
}

func TestRunStoreCancelRemovesTempFiles(t *testing.T) {
	runner, store, stagingDir := newTestRunner(t)

	sourcePath := filepath.Join(t.TempDir(), "input.mp4")
	testsupport.WriteFile(t, sourcePath, 256)
	testsupport.NewJob(t, store, queue.SourceLocal, sourcePath)
	job := claimJob(t, store)

	// Cancellation lands after extraction; the next boundary check
	// must observe it and clean up the staged audio synchronously.
	extractor := &fakeExtractor{probeResult: videoProbe()}
	extractor.afterExtract = func() {
		if _, err := store.RequestCancel(context.Background(), job.ID); err != nil {
			t.Errorf("RequestCancel: %v", err)
		}
	}
	engine := &fakeTranscriber{segments: defaultSegments()}
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeVideo}})
	runner.WithExtractor(extractor)
	runner.WithTranscriber(engine)

	err := runner.Run(context.Background(), job)
	if err == nil {
		t.Fatal("Run succeeded, want cancellation")
	}

	if len(engine.requests) != 0 {
		t.Fatalf("transcribe calls = %d, want 0", len(engine.requests))
	}
	stored, _ := store.GetByID(context.Background(), job.ID)
	if stored.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", stored.Status)
	}
	if stored.ErrorMessage != queue.UserCancelMessage {
		t.Fatalf("error message = %q", stored.ErrorMessage)
	}
	if _, statErr := os.Stat(filepath.Join(stagingDir, job.ID)); !os.IsNotExist(statErr) {
		t.Fatalf("staging dir survived cancellation: %v", statErr)
	}
	if stored.ResultPath != "" {
		t.Fatalf("result path set on cancelled job: %q", stored.ResultPath)
	}
}

func TestRunContextCancelStopsAtBoundary(t *testing.T) {
	runner, store, _ := newTestRunner(t)

	sourcePath := filepath.Join(t.TempDir(), "input.wav")
	testsupport.WriteFile(t, sourcePath, 128)
	testsupport.NewJob(t, store, queue.SourceLocal, sourcePath)
	job := claimJob(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	engine := &fakeTranscriber{segments: defaultSegments()}
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeAudio}})
	runner.WithExtractor(&fakeExtractor{probeResult: normalizedProbe()})
	runner.WithTranscriber(engine)

	if _, err := store.RequestCancel(context.Background(), job.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	cancel()
	if err := runner.Run(ctx, job); err == nil {
		t.Fatal("Run succeeded, want cancellation")
	}

	stored, _ := store.GetByID(context.Background(), job.ID)
	if stored.Status != queue.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", stored.Status)
	}
}

type blockingTranscriber struct {
	started chan struct{}
}

func (b *blockingTranscriber) Transcribe(ctx context.Context, req transcribe.Request, _ transcribe.ProgressFunc) ([]transcribe.Segment, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunShutdownLeavesJobForRelease(t *testing.T) {
	runner, store, stagingDir := newTestRunner(t)

	sourcePath := filepath.Join(t.TempDir(), "input.mp4")
	testsupport.WriteFile(t, sourcePath, 256)
	testsupport.NewJob(t, store, queue.SourceLocal, sourcePath)
	job := claimJob(t, store)

	engine := &blockingTranscriber{started: make(chan struct{})}
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeVideo}})
	runner.WithExtractor(&fakeExtractor{probeResult: videoProbe()})
	runner.WithTranscriber(engine)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, job) }()
	<-engine.started
	cancel()
	if err := <-done; err == nil {
		t.Fatal("Run succeeded, want interruption")
	}

	// No cancel was requested, so the row must stay in flight for the
	// shutdown release pass instead of being terminally cancelled.
	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusTranscribing {
		t.Fatalf("status = %s, want transcribing", stored.Status)
	}
	if stored.ErrorMessage != "" {
		t.Fatalf("unexpected error message %q", stored.ErrorMessage)
	}
	if _, err := os.Stat(filepath.Join(stagingDir, job.ID)); !os.IsNotExist(err) {
		t.Fatalf("staging dir survived interruption: %v", err)
	}

	released, err := store.ReleaseProcessing(context.Background())
	if err != nil {
		t.Fatalf("ReleaseProcessing: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d, want 1", released)
	}
	stored, _ = store.GetByID(context.Background(), job.ID)
	if stored.Status != queue.StatusPending {
		t.Fatalf("status after release = %s, want pending", stored.Status)
	}
	if stored.ProgressMessage != queue.DaemonStopMessage {
		t.Fatalf("progress message = %q", stored.ProgressMessage)
	}
}

func TestRunUnavailableAcceleratorDowngradesWithWarning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	sourcePath := filepath.Join(t.TempDir(), "input.wav")
	testsupport.WriteFile(t, sourcePath, 128)
	opts := testsupport.DefaultOptions()
	opts.Device = "cuda"
	if _, err := store.NewJob(context.Background(), queue.SourceLocal, sourcePath, opts); err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job := claimJob(t, store)

	runner := New(cfg, store, nil)
	runner.WithDeviceProbes(device.Probes{
		CUDA: func(context.Context) bool { return false },
		MPS:  func() bool { return false },
	})
	engine := &fakeTranscriber{segments: defaultSegments()}
	runner.WithAcquirer(&fakeAcquirer{acquisition: media.Acquisition{Path: sourcePath, Type: media.TypeAudio}})
	runner.WithExtractor(&fakeExtractor{probeResult: normalizedProbe()})
	runner.WithTranscriber(engine)

	if err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if engine.requests[0].Device != "cpu" {
		t.Fatalf("device = %q, want cpu", engine.requests[0].Device)
	}
	stored, _ := store.GetByID(context.Background(), job.ID)
	if stored.Status != queue.StatusDone {
		t.Fatalf("status = %s, want done", stored.Status)
	}
	found := false
	for _, warning := range stored.Warnings {
		if strings.Contains(warning, "cuda requested but unavailable") {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing downgrade warning: %v", stored.Warnings)
	}
}
