package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriber/internal/extract"
	"scriber/internal/media"
	"scriber/internal/services"
	"scriber/internal/testsupport"
)

func newExtractor(t *testing.T, runner extract.CommandRunner) *extract.Extractor {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	e := extract.New(cfg, nil)
	if runner != nil {
		e.WithCommandRunner(runner)
	}
	return e
}

func TestExtractWritesDest(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		// Mimic ffmpeg creating the output file.
		return nil, os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644)
	}
	e := newExtractor(t, runner)

	dest := filepath.Join(t.TempDir(), "audio.wav")
	if err := e.Extract(context.Background(), "/in/clip.mp4", dest); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if gotName != "ffmpeg" {
		t.Fatalf("expected ffmpeg, got %q", gotName)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected output file: %v", err)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-ac 1", "-ar 16000", "-c:a pcm_s16le", "-map 0:a:0"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got %q", want, joined)
		}
	}
}

func TestExtractFailureRemovesPartialOutput(t *testing.T) {
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		dest := args[len(args)-1]
		_ = os.WriteFile(dest, []byte("partial"), 0o644)
		return []byte("Invalid data found when processing input"), errors.New("exit status 1")
	}
	e := newExtractor(t, runner)

	dest := filepath.Join(t.TempDir(), "audio.wav")
	err := e.Extract(context.Background(), "/in/clip.mp4", dest)
	if !errors.Is(err, services.ErrExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("expected partial output removed")
	}
	details := services.Details(err)
	if details.Stage != "extracting" {
		t.Fatalf("expected stage extracting, got %q", details.Stage)
	}
	if !strings.Contains(details.Message, "Invalid data found") {
		t.Fatalf("expected stderr tail in message, got %q", details.Message)
	}
}

func TestExtractCancellationRemovesOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		dest := args[len(args)-1]
		_ = os.WriteFile(dest, []byte("partial"), 0o644)
		cancel()
		return nil, ctx.Err()
	}
	e := newExtractor(t, runner)

	dest := filepath.Join(t.TempDir(), "audio.wav")
	err := e.Extract(ctx, "/in/clip.mp4", dest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("expected partial output removed on cancel")
	}
}

func TestNeedsExtraction(t *testing.T) {
	normalized := media.Result{
		Streams: []media.Stream{
			{CodecType: "audio", CodecName: "pcm_s16le", Channels: 1, SampleRate: "16000"},
		},
		Format: media.Format{FormatName: "wav"},
	}
	if extract.NeedsExtraction(normalized) {
		t.Fatal("normalized wav should skip extraction")
	}

	video := media.Result{
		Streams: []media.Stream{
			{CodecType: "video"},
			{CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: "48000"},
		},
		Format: media.Format{FormatName: "mov,mp4,m4a,3gp,3g2,mj2"},
	}
	if !extract.NeedsExtraction(video) {
		t.Fatal("video input must extract")
	}
}

