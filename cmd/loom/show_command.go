package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show details for a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobStatus(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Job)
				}
				stdout := cmd.OutOrStdout()
				for _, line := range jobDetailLines(resp.Job) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the job as JSON")
	return cmd
}

// jobDetailLines renders the full detail view for one job.
func jobDetailLines(job ipc.Job) []string {
	field := func(label, value string) string {
		return fmt.Sprintf("%-16s %s", label+":", value)
	}

	lines := []string{
		field("ID", job.ID),
		field("Title", job.Title),
		field("Profile", dashIfEmpty(job.ChannelProfile)),
		field("Status", displayStatus(job.Status)),
	}
	if job.Progress.Stage != "" {
		progress := fmt.Sprintf("%s (%s)", job.Progress.Stage, formatPercent(job.Progress.Percent))
		if job.Progress.Message != "" {
			progress += " - " + job.Progress.Message
		}
		lines = append(lines, field("Stage", progress))
	}
	if job.TargetDurationSeconds > 0 {
		lines = append(lines, field("Target length", formatSeconds(float64(job.TargetDurationSeconds))))
	}
	lines = append(lines,
		field("Documents", fmt.Sprintf("%d", job.SourceCount)),
		field("Created", formatTimestamp(job.CreatedAt)),
	)
	if job.StartedAt != "" {
		lines = append(lines, field("Started", formatTimestamp(job.StartedAt)))
	}
	if job.CompletedAt != "" {
		lines = append(lines, field("Completed", formatTimestamp(job.CompletedAt)))
	}
	if job.OutputPath != "" {
		lines = append(lines,
			field("Output", job.OutputPath),
			field("Size", formatBytes(job.FileSizeBytes)),
			field("Generation", formatSeconds(job.GenerationTimeSeconds)),
		)
	}
	if job.QualityScore > 0 {
		lines = append(lines, field("Quality score", fmt.Sprintf("%.2f", job.QualityScore)))
	}
	if job.ErrorMessage != "" {
		lines = append(lines, field("Error", job.ErrorMessage))
	}
	return lines
}
