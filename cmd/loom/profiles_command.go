package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/profiles"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List available channel profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := profiles.Load(cfg.Paths.ProfilesFile)
			if err != nil {
				return err
			}
			list := catalog.List()
			if jsonOut {
				return writeJSON(cmd, list)
			}

			rows := make([][]string, 0, len(list))
			for _, profile := range list {
				id := profile.ID
				if id == profiles.DefaultID {
					id += " (default)"
				}
				rows = append(rows, []string{id, profile.DisplayName, profile.Tone, profile.Pacing})
			}
			tbl := renderTable(
				[]string{"ID", "Name", "Tone", "Pacing"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit profiles as JSON")
	return cmd
}
