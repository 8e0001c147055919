package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
	"loom/internal/queue"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JobList(statuses)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Jobs)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				tbl := renderTable(
					[]string{"ID", "Title", "Profile", "Status", "Progress", "Created"},
					buildJobRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), tbl)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit jobs as JSON")
	return cmd
}

// buildJobRows converts wire jobs into list table rows.
func buildJobRows(jobs []ipc.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		progress := "-"
		if job.Progress.Stage != "" {
			progress = fmt.Sprintf("%s %s", job.Progress.Stage, formatPercent(job.Progress.Percent))
		}
		rows = append(rows, []string{
			shortID(job.ID),
			job.Title,
			dashIfEmpty(job.ChannelProfile),
			displayStatus(job.Status),
			progress,
			formatTimestamp(job.CreatedAt),
		})
	}
	return rows
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a pending or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(args[0])
				if err != nil {
					return err
				}
				if !resp.Cancelled {
					return fmt.Errorf("job %s was not cancelled (unknown id or already finished)", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted == clearFailed {
				return errors.New("specify exactly one of --completed or --failed")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				var removed int64
				label := "completed"
				if clearCompleted {
					resp, err := client.ClearCompleted()
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					resp, err := client.ClearFailed()
					if err != nil {
						return err
					}
					removed = resp.Removed
					label = "failed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s jobs\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove completed jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed jobs")
	return cmd
}

// buildQueueStatusRows renders queue counters in a stable order: the known
// lifecycle statuses first, then anything unexpected sorted by name.
func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(stats))
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		key := string(status)
		if count, ok := stats[key]; ok {
			rows = append(rows, []string{displayStatus(key), fmt.Sprintf("%d", count)})
			seen[key] = true
		}
	}

	extras := make([]string, 0)
	for key := range stats {
		if !seen[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		rows = append(rows, []string{displayStatus(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}
