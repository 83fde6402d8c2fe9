package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show server health and stage availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, health)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Healthy: %s\n", yesNo(health.Healthy))
			fmt.Fprintf(out, "Recordings: %d total, %d processing, %d complete, %d failed\n",
				health.Recordings["total"], health.Recordings["processing"],
				health.Recordings["complete"], health.Recordings["failed"])
			stages := make([]string, 0, len(health.Stages))
			for stage := range health.Stages {
				stages = append(stages, stage)
			}
			sort.Strings(stages)
			for _, stage := range stages {
				fmt.Fprintf(out, "Stage %s: %s\n", stage, yesNo(health.Stages[stage]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
