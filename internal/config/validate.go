package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownModels = map[string]struct{}{
	"tiny":   {},
	"base":   {},
	"small":  {},
	"medium": {},
	"large":  {},
	"turbo":  {},
}

var knownFormats = map[string]struct{}{
	"srt": {},
	"vtt": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTranscriber(); err != nil {
		return err
	}
	if err := c.validateAcquisition(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ResultsDir) == "" {
		return errors.New("paths.results_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be at least 1")
	}
	if c.Workflow.QueuePollInterval < 1 {
		return errors.New("workflow.queue_poll_interval must be at least 1 second")
	}
	if c.Workflow.CancelPollInterval < 1 {
		return errors.New("workflow.cancel_poll_interval must be at least 1 second")
	}
	if c.Workflow.HeartbeatTimeout > 0 && c.Workflow.HeartbeatInterval >= c.Workflow.HeartbeatTimeout {
		return errors.New("workflow.heartbeat_interval must be below workflow.heartbeat_timeout")
	}
	return nil
}

func (c *Config) validateTranscriber() error {
	if strings.TrimSpace(c.Transcriber.Binary) == "" {
		return errors.New("transcriber.binary must be set")
	}
	model := strings.ToLower(strings.TrimSpace(c.Transcriber.Model))
	if _, ok := knownModels[model]; !ok {
		return fmt.Errorf("transcriber.model: unknown model %q", c.Transcriber.Model)
	}
	return nil
}

func (c *Config) validateAcquisition() error {
	if c.Acquisition.RetryCount < 0 {
		return errors.New("acquisition.retry_count must not be negative")
	}
	if c.Acquisition.DownloadTimeout < 1 {
		return errors.New("acquisition.download_timeout must be at least 1 second")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	format := strings.ToLower(strings.TrimSpace(c.Subtitles.Format))
	if _, ok := knownFormats[format]; !ok {
		return fmt.Errorf("subtitles.format: unsupported format %q (srt or vtt)", c.Subtitles.Format)
	}
	if c.Subtitles.MaxLineLength < 0 {
		return errors.New("subtitles.max_line_length must not be negative")
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(valueOr(c.Paths.StagingDir, defaultStagingDir)); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.ResultsDir, err = expandPath(valueOr(c.Paths.ResultsDir, defaultResultsDir)); err != nil {
		return fmt.Errorf("paths.results_dir: %w", err)
	}
	if c.Paths.UploadDir, err = expandPath(valueOr(c.Paths.UploadDir, defaultUploadDir)); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(valueOr(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Transcriber.Model = strings.ToLower(strings.TrimSpace(valueOr(c.Transcriber.Model, defaultTranscriberModel)))
	c.Transcriber.Device = strings.ToLower(strings.TrimSpace(valueOr(c.Transcriber.Device, defaultDevicePolicy)))
	c.Subtitles.Format = strings.ToLower(strings.TrimSpace(valueOr(c.Subtitles.Format, defaultSubtitleFormat)))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(valueOr(c.Logging.Format, defaultLogFormat)))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(valueOr(c.Logging.Level, defaultLogLevel)))
	return nil
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
