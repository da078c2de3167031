package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"scriber/internal/config"
	"scriber/internal/logging"
	"scriber/internal/media"
	"scriber/internal/services"
)

const extractStage = "extracting"

// stderrTailBytes bounds how much ffmpeg output lands in an error message.
const stderrTailBytes = 512

// CommandRunner executes a child process and returns its combined output.
// Swapped out in tests.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Extractor turns arbitrary media inputs into normalized WAV audio.
type Extractor struct {
	ffmpegBinary  string
	ffprobeBinary string
	logger        *slog.Logger
	runner        CommandRunner
}

// New builds an Extractor from config.
func New(cfg *config.Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		ffmpegBinary:  cfg.FFmpegBinary(),
		ffprobeBinary: cfg.FFprobeBinary(),
		logger:        logger.With(logging.String(logging.FieldComponent, "extract")),
		runner:        defaultRunner,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner CommandRunner) {
	e.runner = runner
}

// Probe inspects the source so the pipeline can decide whether the
// extraction stage may be skipped and learn the audio duration.
func (e *Extractor) Probe(ctx context.Context, source string) (media.Result, error) {
	result, err := media.Inspect(ctx, e.ffprobeBinary, source)
	if err != nil {
		return media.Result{}, services.Wrap(services.ErrExtractionFailed, extractStage, "probe source",
			fmt.Sprintf("ffprobe could not read %q", source), err)
	}
	if result.AudioStreamCount() == 0 {
		return media.Result{}, services.Wrap(services.ErrUnsupportedFormat, extractStage, "probe source",
			fmt.Sprintf("%q contains no audio stream", source), nil)
	}
	return result, nil
}

// NeedsExtraction reports whether the probed source must run through
// ffmpeg before transcription.
func NeedsExtraction(result media.Result) bool {
	return !result.IsNormalizedAudio()
}

// Extract writes a mono 16 kHz PCM WAV rendition of the source's first
// audio stream to dest. On failure or cancellation the partial output is
// removed before returning.
func (e *Extractor) Extract(ctx context.Context, source, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}

	e.logger.Info("extracting audio",
		logging.String("source", source),
		logging.String("dest", dest))

	output, err := e.runner(ctx, e.ffmpegBinary, args...)
	if err != nil {
		_ = os.Remove(dest)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExtractionFailed, extractStage, "ffmpeg",
			fmt.Sprintf("ffmpeg failed: %s", stderrTail(output)), err)
	}
	if ctx.Err() != nil {
		_ = os.Remove(dest)
		return ctx.Err()
	}
	return nil
}

func stderrTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) <= stderrTailBytes {
		return text
	}
	return "..." + text[len(text)-stderrTailBytes:]
}
