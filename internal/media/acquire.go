package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"resty.dev/v3"

	"scriber/internal/config"
	"scriber/internal/logging"
	"scriber/internal/services"
)

const acquireStage = "acquiring"

// Source identifies where a job's input comes from.
type Source struct {
	Kind  string // local, upload, url
	Value string
}

// Acquisition is the outcome of bringing a source into reach of the
// pipeline. Cleanup lists staging artifacts the pipeline must remove.
type Acquisition struct {
	Path     string
	Type     Type
	Cleanup  []string
	Download bool
}

// Acquirer resolves job sources to local files.
type Acquirer struct {
	cfg    *config.Config
	logger *slog.Logger
	client *resty.Client
}

// NewAcquirer builds an Acquirer with a shared retrying HTTP client.
func NewAcquirer(cfg *config.Config, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := resty.New().
		SetTimeout(time.Duration(cfg.Acquisition.DownloadTimeout) * time.Second).
		SetRetryCount(cfg.Acquisition.RetryCount).
		SetRetryWaitTime(time.Duration(cfg.Acquisition.RetryWaitSeconds) * time.Second).
		SetRetryMaxWaitTime(time.Duration(cfg.Acquisition.RetryMaxWait) * time.Second).
		SetHeader("User-Agent", cfg.Acquisition.UserAgent)
	return &Acquirer{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "media")),
		client: client,
	}
}

// Close releases the underlying HTTP client.
func (a *Acquirer) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Acquire resolves the source into a local file inside reach of the
// pipeline. Local and upload sources validate in place; URLs download
// into the job's staging directory.
func (a *Acquirer) Acquire(ctx context.Context, jobID string, source Source) (Acquisition, error) {
	switch source.Kind {
	case "url":
		return a.acquireRemote(ctx, jobID, source.Value)
	case "local", "upload":
		return a.acquireFile(source.Value)
	default:
		return Acquisition{}, services.Wrap(services.ErrInternal, acquireStage, "acquire",
			fmt.Sprintf("unknown source kind %q", source.Kind), nil)
	}
}

func (a *Acquirer) acquireFile(path string) (Acquisition, error) {
	if _, err := ValidateExtension(acquireStage, path); err != nil {
		return Acquisition{}, err
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		return Acquisition{}, services.Wrap(services.ErrResourceUnavailable, acquireStage, "stat source",
			fmt.Sprintf("source file %q is not readable", path), statErr)
	}
	if info.IsDir() {
		return Acquisition{}, services.Wrap(services.ErrResourceUnavailable, acquireStage, "stat source",
			fmt.Sprintf("source path %q is a directory", path), nil)
	}
	mediaType, _ := Classify(path)
	return Acquisition{Path: path, Type: mediaType}, nil
}

func (a *Acquirer) acquireRemote(ctx context.Context, jobID, rawURL string) (Acquisition, error) {
	ext := ExtensionFromURL(rawURL)
	if ext != "" {
		// Reject unsupported types before any network traffic.
		if _, ok := Classify("source" + ext); !ok {
			return Acquisition{}, services.Wrap(services.ErrUnsupportedFormat, acquireStage, "validate url",
				fmt.Sprintf("unsupported media extension %q in url", ext), nil)
		}
	}

	jobDir := filepath.Join(a.cfg.Paths.StagingDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Acquisition{}, services.Wrap(services.ErrInternal, acquireStage, "create staging dir", "", err)
	}
	dest := filepath.Join(jobDir, "source"+ext)

	a.logger.Info("downloading source",
		logging.String(logging.FieldJobID, jobID),
		logging.String("url", rawURL))

	resp, err := a.client.R().
		SetContext(ctx).
		SetSaveResponse(true).
		SetOutputFileName(dest).
		Get(rawURL)
	if err != nil {
		_ = os.Remove(dest)
		return Acquisition{Cleanup: []string{jobDir}}, services.Wrap(services.ErrResourceUnavailable, acquireStage, "download",
			fmt.Sprintf("download %q failed", rawURL), err)
	}
	if !resp.IsSuccess() {
		_ = os.Remove(dest)
		return Acquisition{Cleanup: []string{jobDir}}, services.Wrap(services.ErrResourceUnavailable, acquireStage, "download",
			fmt.Sprintf("download %q returned status %d", rawURL, resp.StatusCode()), nil)
	}

	if ext == "" {
		// No extension in the URL path; the body has to identify itself.
		resolved, resolveErr := resolveDownloadedExtension(dest, resp.Header().Get("Content-Type"))
		if resolveErr != nil {
			_ = os.Remove(dest)
			return Acquisition{Cleanup: []string{jobDir}}, resolveErr
		}
		renamed := dest + resolved
		if err := os.Rename(dest, renamed); err != nil {
			return Acquisition{Cleanup: []string{jobDir}}, services.Wrap(services.ErrInternal, acquireStage, "rename download", "", err)
		}
		dest = renamed
	}

	mediaType, _ := Classify(dest)
	return Acquisition{
		Path:     dest,
		Type:     mediaType,
		Cleanup:  []string{jobDir},
		Download: true,
	}, nil
}

// contentTypeExtensions maps response content types to extensions for
// URLs whose path carries none.
var contentTypeExtensions = map[string]string{
	"audio/mpeg":       ".mp3",
	"audio/wav":        ".wav",
	"audio/x-wav":      ".wav",
	"audio/ogg":        ".ogg",
	"audio/flac":       ".flac",
	"audio/mp4":        ".m4a",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
}

func resolveDownloadedExtension(path, contentType string) (string, error) {
	base, _, _ := strings.Cut(contentType, ";")
	base = strings.TrimSpace(strings.ToLower(base))
	if ext, ok := contentTypeExtensions[base]; ok {
		return ext, nil
	}
	return "", services.Wrap(services.ErrUnsupportedFormat, acquireStage, "resolve content type",
		fmt.Sprintf("cannot determine media type of download %q (content-type %q)", filepath.Base(path), contentType), nil)
}
