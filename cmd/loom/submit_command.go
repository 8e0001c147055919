package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/ingest"
	"loom/internal/ipc"
	"loom/internal/queue"
	"loom/internal/textutil"
)

const submitPollInterval = 2 * time.Second

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var title string
	var profile string
	var prompt string
	var duration int
	var wait bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Queue documents for video generation",
		Long: "Extracts text from the given documents (txt, md, html, pdf, docx) and queues\n" +
			"a generation job with the daemon. With --wait the command polls until the\n" +
			"job reaches a terminal state.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := ingest.Ingest(args)
			if err != nil {
				return err
			}

			words := 0
			req := ipc.SubmitRequest{
				Title:                 resolveTitle(title, args[0]),
				ChannelProfile:        profile,
				TargetDurationSeconds: duration,
				CustomPrompt:          prompt,
				Sources:               make([]ipc.SourceText, 0, len(sources)),
			}
			for _, src := range sources {
				words += textutil.WordCount(src.Content)
				req.Sources = append(req.Sources, ipc.SourceText{Name: src.Name, Content: src.Content})
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(req)
				if err != nil {
					return err
				}
				job := resp.Job

				stdout := cmd.OutOrStdout()
				if !wait {
					if jsonOut {
						return writeJSON(cmd, job)
					}
					fmt.Fprintf(stdout, "Queued job %s: %q (%d documents, %d words)\n", job.ID, job.Title, len(sources), words)
					fmt.Fprintf(stdout, "Track it with `loom show %s`\n", job.ID)
					return nil
				}

				fmt.Fprintf(stdout, "Queued job %s: %q (%d documents, %d words)\n", job.ID, job.Title, len(sources), words)
				final, err := waitForJob(cmd, client, job.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, final)
				}
				switch queue.Status(final.Status) {
				case queue.StatusCompleted:
					fmt.Fprintf(stdout, "Completed: %s (%s in %s)\n",
						final.OutputPath, formatBytes(final.FileSizeBytes), formatSeconds(final.GenerationTimeSeconds))
					return nil
				default:
					return fmt.Errorf("job %s finished as %s: %s", final.ID, final.Status, dashIfEmpty(final.ErrorMessage))
				}
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Video title (defaults to the first document's file name)")
	cmd.Flags().StringVar(&profile, "profile", "", "Channel profile id (see `loom profiles`)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Target video duration in seconds (defaults to the configured value)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Extra instructions blended into the script prompt")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the job completes or fails")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the job as JSON")
	return cmd
}

// waitForJob polls job status until the job reaches a terminal state,
// reporting stage transitions as they happen.
func waitForJob(cmd *cobra.Command, client *ipc.Client, id string) (ipc.Job, error) {
	stdout := cmd.OutOrStdout()
	ticker := time.NewTicker(submitPollInterval)
	defer ticker.Stop()

	lastStage := ""
	for {
		resp, err := client.JobStatus(id)
		if err != nil {
			return ipc.Job{}, err
		}
		job := resp.Job

		if stage := job.Progress.Stage; stage != "" && stage != lastStage {
			fmt.Fprintf(stdout, "  %s (%s)\n", stage, formatPercent(job.Progress.Percent))
			lastStage = stage
		}
		if status, ok := queue.ParseStatus(job.Status); ok && status.IsTerminal() {
			return job, nil
		}

		select {
		case <-cmd.Context().Done():
			return job, cmd.Context().Err()
		case <-ticker.C:
		}
	}
}
