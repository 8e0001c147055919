package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, budget, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				if resp.Running {
					fmt.Fprintln(stdout, renderStatusLine("Process", statusOK, fmt.Sprintf("Running (pid %d)", resp.PID), colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Process", statusWarn, "Workflow stopped", colorize))
				}
				fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, resp.QueueDBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Log", statusInfo, resp.LogPath, colorize))
				if resp.LastError != "" {
					fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, resp.LastError, colorize))
				}
				for _, check := range resp.Checks {
					fmt.Fprintln(stdout, renderStatusLine(check.Name, statusKindForBool(check.Passed), check.Detail, colorize))
				}

				if resp.Budget != nil {
					fmt.Fprintln(stdout)
					for _, line := range renderSectionHeader("Generation Budget", colorize) {
						fmt.Fprintln(stdout, line)
					}
					for _, line := range budgetLines(resp.Budget, colorize) {
						fmt.Fprintln(stdout, line)
					}
				}

				if len(resp.StageHealth) > 0 {
					fmt.Fprintln(stdout)
					for _, line := range renderSectionHeader("Stage Health", colorize) {
						fmt.Fprintln(stdout, line)
					}
					for _, health := range resp.StageHealth {
						fmt.Fprintln(stdout, renderStatusLine(health.Name, statusKindForBool(health.Ready), health.Detail, colorize))
					}
				}

				if len(resp.ActiveJobs) > 0 {
					fmt.Fprintln(stdout)
					for _, line := range renderSectionHeader("Active Jobs", colorize) {
						fmt.Fprintln(stdout, line)
					}
					tbl := renderTable(
						[]string{"ID", "Title", "Stage", "Progress", "Heartbeat"},
						buildActiveJobRows(resp.ActiveJobs),
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
					)
					fmt.Fprintln(stdout, tbl)
				}

				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildQueueStatusRows(resp.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit status as JSON")
	return cmd
}

func budgetLines(usage *ipc.BudgetUsage, colorize bool) []string {
	tokens := fmt.Sprintf("%d used", usage.TokensUsed)
	kind := statusOK
	if usage.DailyTokenLimit > 0 {
		tokens = fmt.Sprintf("%d of %d", usage.TokensUsed, usage.DailyTokenLimit)
		if usage.TokensUsed >= usage.DailyTokenLimit {
			kind = statusError
		} else if usage.TokensUsed*10 >= usage.DailyTokenLimit*8 {
			kind = statusWarn
		}
	}
	return []string{
		renderStatusLine("Requests", statusInfo, fmt.Sprintf("%d today (%s)", usage.RequestCount, usage.Day), colorize),
		renderStatusLine("Tokens", kind, tokens, colorize),
	}
}

func buildActiveJobRows(jobs []ipc.ActiveJob) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		heartbeat := "ok"
		if job.Stale {
			heartbeat = "stale"
		}
		rows = append(rows, []string{
			shortID(job.ID),
			job.Title,
			dashIfEmpty(job.Stage),
			formatPercent(job.Percent),
			heartbeat,
		})
	}
	return rows
}
