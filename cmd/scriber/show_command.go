package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriber/internal/api"
	"scriber/internal/language"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show details for a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobResponse{Job: job})
				}
				printJobDetails(cmd, job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the job as JSON")
	return cmd
}

func printJobDetails(cmd *cobra.Command, job api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Source:   %s (%s)\n", job.Source, job.SourceKind)
	fmt.Fprintf(out, "Model:    %s\n", job.Model)
	if job.Language != "" {
		fmt.Fprintf(out, "Language: %s (%s)\n", language.Display(job.Language), job.Language)
	}
	fmt.Fprintf(out, "Format:   %s\n", job.Format)
	fmt.Fprintf(out, "Device:   %s\n", job.Device)
	if job.Progress.Stage != "" {
		fmt.Fprintf(out, "Progress: %.0f%% [%s] %s\n", job.Progress.Percent, job.Progress.Stage, job.Progress.Message)
	}
	if job.ResultPath != "" {
		fmt.Fprintf(out, "Result:   %s\n", job.ResultPath)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:    [%s] %s\n", job.ErrorKind, job.ErrorMessage)
	}
	for _, warning := range job.Warnings {
		fmt.Fprintf(out, "Warning:  %s\n", warning)
	}
	if job.CreatedAt != "" {
		fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt)
	}
	if job.UpdatedAt != "" {
		fmt.Fprintf(out, "Updated:  %s\n", job.UpdatedAt)
	}
}
