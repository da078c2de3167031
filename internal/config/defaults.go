package config

const (
	defaultStagingDir = "~/.local/share/scriber/staging"
	defaultResultsDir = "~/.local/share/scriber/results"
	defaultUploadDir  = "~/.local/share/scriber/uploads"
	defaultLogDir     = "~/.local/share/scriber/logs"
	defaultAPIBind    = "127.0.0.1:7587"

	defaultWorkers            = 1
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 10
	defaultCancelPollInterval = 2
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120

	defaultTranscriberBinary = "whisper"
	defaultTranscriberModel  = "base"
	defaultDevicePolicy      = "auto"

	defaultDownloadTimeout  = 1800
	defaultDownloadRetries  = 3
	defaultRetryWaitSeconds = 2
	defaultRetryMaxWait     = 30
	defaultUserAgent        = "scriber/dev"

	defaultSubtitleFormat = "srt"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			ResultsDir: defaultResultsDir,
			UploadDir:  defaultUploadDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			CancelPollInterval: defaultCancelPollInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Transcriber: Transcriber{
			Binary: defaultTranscriberBinary,
			Model:  defaultTranscriberModel,
			Device: defaultDevicePolicy,
		},
		Acquisition: Acquisition{
			DownloadTimeout:  defaultDownloadTimeout,
			RetryCount:       defaultDownloadRetries,
			RetryWaitSeconds: defaultRetryWaitSeconds,
			RetryMaxWait:     defaultRetryMaxWait,
			UserAgent:        defaultUserAgent,
		},
		Subtitles: Subtitles{
			Format: defaultSubtitleFormat,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
