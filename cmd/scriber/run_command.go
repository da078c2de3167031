package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scriber/internal/api"
	"scriber/internal/logging"
	"scriber/internal/pipeline"
	"scriber/internal/queue"
)

// newRunCommand processes a single source in-process, without a
// daemon. Useful for one-off transcriptions and for smoke-testing a
// configuration.
func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var output string

	cmd := &cobra.Command{
		Use:   "run <path-or-url>",
		Short: "Transcribe one source in-process without a daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			source := args[0]
			req := flags.request()
			if isRemoteSource(source) {
				req.SourceKind = string(queue.SourceURL)
				req.Source = source
			} else {
				path, absErr := filepath.Abs(source)
				if absErr != nil {
					return absErr
				}
				req.SourceKind = string(queue.SourceLocal)
				req.Source = path
			}

			svc := api.NewJobService(cfg, store)
			view, err := svc.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}

			job, err := store.Claim(cmd.Context())
			if err != nil {
				return err
			}
			if job == nil {
				return errors.New("submitted job vanished before it could be claimed")
			}
			if job.ID != view.ID {
				// An older pending job got claimed first; put it back.
				job.Status = queue.StatusPending
				job.LastHeartbeat = nil
				_ = store.Update(cmd.Context(), job)
				return errors.New("queue is not empty, refusing one-shot run; use the daemon instead")
			}

			runner := pipeline.New(cfg, store, logger)
			if runErr := runner.Run(cmd.Context(), job); runErr != nil {
				finished, getErr := store.GetByID(cmd.Context(), job.ID)
				if getErr == nil && finished != nil && finished.ErrorMessage != "" {
					return fmt.Errorf("transcription failed: %s", finished.ErrorMessage)
				}
				return runErr
			}

			finished, err := store.GetByID(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			for _, warning := range finished.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: %s\n", warning)
			}

			dest := output
			if dest == "" {
				dest = subtitleSibling(req.Source, req.SourceKind, finished.ResultPath)
			}
			if err := copyFile(finished.ResultPath, dest); err != nil {
				return fmt.Errorf("copy result to %s: %w", dest, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Result: %s\n", dest)
			return nil
		},
	}

	registerSubmitFlags(cmd, &flags)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the subtitle file to this path")
	return cmd
}

// subtitleSibling places the subtitle next to a local input, or in the
// current directory for remote sources.
func subtitleSibling(source, kind, resultPath string) string {
	ext := filepath.Ext(resultPath)
	if kind == string(queue.SourceLocal) {
		base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		return filepath.Join(filepath.Dir(source), base+ext)
	}
	return filepath.Base(resultPath)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
