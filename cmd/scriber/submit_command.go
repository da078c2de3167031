package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scriber/internal/api"
	"scriber/internal/queue"
)

type submitFlags struct {
	model         string
	language      string
	format        string
	maxLineLength int
	device        string
	halfPrecision bool
	upload        bool
	jsonOutput    bool
}

func registerSubmitFlags(cmd *cobra.Command, flags *submitFlags) {
	cmd.Flags().StringVar(&flags.model, "model", "", "Whisper model name (tiny, base, small, medium, large)")
	cmd.Flags().StringVar(&flags.language, "language", "", "Spoken language (ISO 639-1 code or English name)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Subtitle format (srt or vtt)")
	cmd.Flags().IntVar(&flags.maxLineLength, "line-length", 0, "Wrap subtitle lines at this many characters")
	cmd.Flags().StringVar(&flags.device, "device", "", "Compute device (auto, cpu, cuda, cuda:N, mps)")
	cmd.Flags().BoolVar(&flags.halfPrecision, "fp16", false, "Use half precision on accelerators")
}

func (f submitFlags) request() api.SubmitRequest {
	return api.SubmitRequest{
		Model:         f.model,
		Language:      f.language,
		Format:        f.format,
		MaxLineLength: f.maxLineLength,
		Device:        f.device,
		HalfPrecision: f.halfPrecision,
	}
}

func isRemoteSource(value string) bool {
	lower := strings.ToLower(value)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "submit <path-or-url>",
		Short: "Queue a media file or URL for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])

			return ctx.withClient(func(client *api.Client) error {
				req := flags.request()
				var view api.JobView
				var err error
				switch {
				case flags.upload:
					if isRemoteSource(source) {
						return fmt.Errorf("--upload requires a local file, got %q", source)
					}
					path, absErr := filepath.Abs(source)
					if absErr != nil {
						return absErr
					}
					view, err = client.SubmitUpload(cmd.Context(), path, req)
				case isRemoteSource(source):
					req.SourceKind = string(queue.SourceURL)
					req.Source = source
					view, err = client.Submit(cmd.Context(), req)
				default:
					path, absErr := filepath.Abs(source)
					if absErr != nil {
						return absErr
					}
					req.SourceKind = string(queue.SourceLocal)
					req.Source = path
					view, err = client.Submit(cmd.Context(), req)
				}
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					return writeJSON(cmd, api.JobResponse{Job: view})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", view.ID, view.Status)
				return nil
			})
		},
	}

	registerSubmitFlags(cmd, &flags)
	cmd.Flags().BoolVar(&flags.upload, "upload", false, "Stream the file to the daemon instead of passing its path")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Emit the created job as JSON")
	return cmd
}
