package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scriber/internal/api"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transcription jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobs, err := client.List(cmd.Context(), statusFlags...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				if !isTerminal(out) {
					for _, job := range jobs {
						fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", job.ID, job.Status, job.SourceKind, job.Source)
					}
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						shortID(job.ID),
						job.Status,
						progressCell(job),
						job.SourceKind,
						job.Source,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Progress", "Kind", "Source"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&statusFlags, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit jobs as JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func progressCell(job api.JobView) string {
	switch job.Status {
	case "done":
		return "100%"
	case "failed", "cancelled", "pending":
		return "-"
	}
	if job.Progress.Stage == "" {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", job.Progress.Percent)
}
