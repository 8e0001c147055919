package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/ipc"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show queue and database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				queueResp, err := client.QueueHealth()
				if err != nil {
					return err
				}
				dbResp, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, struct {
						Queue    *ipc.QueueHealthResponse    `json:"queue"`
						Database *ipc.DatabaseHealthResponse `json:"database"`
					}{queueResp, dbResp})
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d jobs", queueResp.Total), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Pending", statusInfo, fmt.Sprintf("%d", queueResp.Pending), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Processing", statusInfo, fmt.Sprintf("%d", queueResp.Processing), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Completed", statusInfo, fmt.Sprintf("%d", queueResp.Completed), colorize))
				failedKind := statusInfo
				if queueResp.Failed > 0 {
					failedKind = statusWarn
				}
				fmt.Fprintln(stdout, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", queueResp.Failed), colorize))

				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Database", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range databaseHealthLines(dbResp, colorize) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit diagnostics as JSON")
	return cmd
}

func databaseHealthLines(resp *ipc.DatabaseHealthResponse, colorize bool) []string {
	lines := []string{
		renderStatusLine("Path", statusInfo, resp.DBPath, colorize),
		renderStatusLine("Exists", statusKindForBool(resp.DatabaseExists), "", colorize),
		renderStatusLine("Readable", statusKindForBool(resp.DatabaseReadable), "", colorize),
		renderStatusLine("Schema", statusInfo, dashIfEmpty(resp.SchemaVersion), colorize),
		renderStatusLine("Jobs table", statusKindForBool(resp.TableExists), "", colorize),
		renderStatusLine("Integrity", statusKindForBool(resp.IntegrityCheck), "", colorize),
		renderStatusLine("Job count", statusInfo, fmt.Sprintf("%d", resp.TotalJobs), colorize),
	}
	if len(resp.MissingColumns) > 0 {
		lines = append(lines, renderStatusLine("Missing columns", statusError, strings.Join(resp.MissingColumns, ", "), colorize))
	}
	if resp.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, resp.Error, colorize))
	}
	return lines
}
