// Package deps reports availability of the external binaries scriber
// shells out to. The daemon status endpoint surfaces these checks so a
// misconfigured host is visible before the first job fails.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"scriber/internal/config"
)

// Requirement defines an external dependency scriber relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the pipeline invokes, resolved from
// configuration.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "ffprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Media inspection before extraction",
		},
		{
			Name:        "ffmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Audio extraction and normalization",
		},
		{
			Name:        "whisper",
			Command:     cfg.Transcriber.Binary,
			Description: "Speech recognition",
		},
		{
			Name:        "nvidia-smi",
			Command:     "nvidia-smi",
			Description: "CUDA device detection",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Check runs the standard requirement set against the host.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(Requirements(cfg))
}
