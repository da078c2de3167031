package testsupport

import (
	"path/filepath"
	"testing"

	"scriber/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.ResultsDir = filepath.Join(base, "results")
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithWorkers overrides the worker count on the test config.
func WithWorkers(count int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.Workers = count
	}
}

// WithSubtitleFormat overrides the output format on the test config.
func WithSubtitleFormat(format string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Subtitles.Format = format
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
