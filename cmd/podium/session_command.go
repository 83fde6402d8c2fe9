package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "session <token>",
		Short: "Show a practice session and its aggregate score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.Session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			printHeader(out, fmt.Sprintf("Session %s", view.Token))
			rows := make([][]string, len(view.Members))
			for i, member := range view.Members {
				score := "-"
				if member.Report != nil {
					score = strconv.Itoa(member.Report.Overall)
				}
				rows[i] = []string{
					strconv.Itoa(member.Position),
					member.Recording.ID,
					statusLabel(member.Recording.Status),
					member.Recording.Question,
					score,
				}
			}
			headers := []string{"#", "Recording", "Status", "Question", "Score"}
			aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			if view.Aggregate != nil {
				fmt.Fprintf(out, "Session score: %d/100\n", *view.Aggregate)
			} else {
				fmt.Fprintln(out, "Session score: not yet available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
