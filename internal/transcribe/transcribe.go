package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scriber/internal/config"
	"scriber/internal/logging"
	"scriber/internal/services"
)

const transcribeStage = "transcribing"

const outputTailBytes = 512

// Segment is one transcribed span, ordered and non-overlapping.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Request describes a single transcription run.
type Request struct {
	AudioPath     string
	OutputDir     string
	Model         string
	Language      string
	Device        string
	HalfPrecision bool
	// DurationSeconds of the audio, used to turn streamed timestamps
	// into a percentage. Zero disables progress estimation.
	DurationSeconds float64
}

// ProgressFunc receives throttled progress estimates while the CLI runs.
type ProgressFunc func(percent float64, message string)

// CommandRunner executes the CLI, feeding stdout lines to onLine, and
// returns the tail of combined output for error reporting. Swapped out
// in tests.
type CommandRunner func(ctx context.Context, name string, args []string, onLine func(string)) ([]byte, error)

func defaultRunner(ctx context.Context, name string, args []string, onLine func(string)) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var tail bytes.Buffer
	cmd.Stderr = &tail

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail.WriteString(line)
		tail.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}
	if err := cmd.Wait(); err != nil {
		return tail.Bytes(), err
	}
	return tail.Bytes(), scanner.Err()
}

// Engine invokes the whisper CLI.
type Engine struct {
	binary string
	logger *slog.Logger
	runner CommandRunner
}

// New builds an Engine from config.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	binary := strings.TrimSpace(cfg.Transcriber.Binary)
	if binary == "" {
		binary = "whisper"
	}
	return &Engine{
		binary: binary,
		logger: logger.With(logging.String(logging.FieldComponent, "transcribe")),
		runner: defaultRunner,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner CommandRunner) {
	e.runner = runner
}

// Transcribe runs the CLI and returns the ordered segments. An empty
// segment list is a valid result for silent audio.
func (e *Engine) Transcribe(ctx context.Context, req Request, onProgress ProgressFunc) ([]Segment, error) {
	if req.AudioPath == "" {
		return nil, services.Wrap(services.ErrInternal, transcribeStage, "transcribe", "audio path required", nil)
	}
	if req.OutputDir == "" {
		req.OutputDir = filepath.Dir(req.AudioPath)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrInternal, transcribeStage, "ensure output dir", "", err)
	}

	args := buildArgs(req)
	e.logger.Info("starting whisper",
		logging.String("model", req.Model),
		logging.String("device", req.Device),
		logging.String("audio", req.AudioPath))

	onLine := func(line string) {
		if onProgress == nil || req.DurationSeconds <= 0 {
			return
		}
		end, ok := parseSegmentEnd(line)
		if !ok {
			return
		}
		percent := end / req.DurationSeconds * 100
		if percent > 100 {
			percent = 100
		}
		onProgress(percent, fmt.Sprintf("transcribed %s of %s",
			formatClock(end), formatClock(req.DurationSeconds)))
	}

	output, err := e.runner(ctx, e.binary, args, onLine)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		tail := outputTail(output)
		if isDeviceFailureOutput(tail) {
			return nil, services.Wrap(services.ErrDeviceError, transcribeStage, "whisper",
				fmt.Sprintf("device failure: %s", tail), err)
		}
		return nil, services.Wrap(services.ErrTranscriptionFailed, transcribeStage, "whisper",
			fmt.Sprintf("whisper failed: %s", tail), err)
	}

	jsonPath := outputJSONPath(req.AudioPath, req.OutputDir)
	segments, err := LoadSegments(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscriptionFailed, transcribeStage, "load segments",
			fmt.Sprintf("whisper produced no readable output at %q", jsonPath), err)
	}
	return segments, nil
}

func buildArgs(req Request) []string {
	args := []string{
		req.AudioPath,
		"--model", req.Model,
		"--output_dir", req.OutputDir,
		"--output_format", "json",
		"--device", req.Device,
		"--task", "transcribe",
		"--verbose", "True",
	}
	if req.HalfPrecision {
		args = append(args, "--fp16", "True")
	} else {
		args = append(args, "--fp16", "False")
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	return args
}

// outputJSONPath mirrors the CLI's naming: <output_dir>/<audio base>.json.
func outputJSONPath(audioPath, outputDir string) string {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return filepath.Join(outputDir, base+".json")
}

type whisperPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments reads the CLI's JSON output file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper json: %w", err)
	}
	for i := range payload.Segments {
		payload.Segments[i].Text = strings.TrimSpace(payload.Segments[i].Text)
	}
	return payload.Segments, nil
}

// IsDeviceFailure reports whether an error represents an accelerator
// fault rather than a transcription problem.
func IsDeviceFailure(err error) bool {
	return services.KindOf(err) == services.KindDeviceError
}

var deviceFailureMarkers = []string{
	"cuda",
	"cudnn",
	"out of memory",
	"mps backend",
	"device-side assert",
}

func isDeviceFailureOutput(tail string) bool {
	lowered := strings.ToLower(tail)
	for _, marker := range deviceFailureMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func outputTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) <= outputTailBytes {
		return text
	}
	return "..." + text[len(text)-outputTailBytes:]
}

func formatClock(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
