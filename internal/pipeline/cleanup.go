package pipeline

import (
	"log/slog"
	"os"

	"scriber/internal/logging"
)

// cleanupSet accumulates temp artifacts created while a job runs. Run
// removes them in reverse registration order and is safe to call more
// than once.
type cleanupSet struct {
	paths []string
	done  bool
}

func (c *cleanupSet) add(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		c.paths = append(c.paths, path)
	}
}

func (c *cleanupSet) run(logger *slog.Logger) {
	if c.done {
		return
	}
	c.done = true
	for i := len(c.paths) - 1; i >= 0; i-- {
		path := c.paths[i]
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("failed to remove temp artifact",
				logging.String("path", path),
				logging.Error(err))
		}
	}
	c.paths = nil
}
