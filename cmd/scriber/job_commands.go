package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scriber/internal/api"
)

func newResultCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Download the subtitle document for a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				id := args[0]
				dest := strings.TrimSpace(output)
				if dest == "" {
					job, err := client.Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					if job.ResultPath == "" {
						return fmt.Errorf("job %s has no result yet", id)
					}
					dest = filepath.Base(job.ResultPath)
				}
				if err := client.Result(cmd.Context(), id, dest); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", dest)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path for the subtitle file")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				cancelled, err := client.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !cancelled {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s is already finished\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s\n", args[0])
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Remove a job record and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				deleted, err := client.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("job %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Daemon:   running (pid %d)\n", status.PID)
				fmt.Fprintf(out, "Workers:  %v\n", status.Workflow.Running)
				fmt.Fprintf(out, "Queue DB: %s\n", status.QueueDBPath)
				fmt.Fprintln(out, "Jobs:")
				for _, key := range []string{"pending", "acquiring", "extracting", "selecting_device", "transcribing", "formatting", "done", "failed", "cancelled"} {
					if count, ok := status.Workflow.QueueStats[key]; ok {
						fmt.Fprintf(out, "  %-17s %d\n", key, count)
					}
				}
				if len(status.Dependencies) > 0 {
					fmt.Fprintln(out, "Dependencies:")
					for _, dep := range status.Dependencies {
						state := "ok"
						if !dep.Available {
							state = "missing"
							if dep.Optional {
								state = "missing (optional)"
							}
						}
						fmt.Fprintf(out, "  %-12s %s\n", dep.Name, state)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}
