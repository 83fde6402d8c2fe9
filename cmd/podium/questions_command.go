package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQuestionsCommand(ctx *commandContext) *cobra.Command {
	var count int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "questions <topic>",
		Short: "Generate practice questions for a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			questions, err := client.Questions(cmd.Context(), args[0], count)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, questions)
			}
			out := cmd.OutOrStdout()
			for i, question := range questions {
				fmt.Fprintf(out, "%d. %s\n", i+1, question)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 3, "Number of questions to generate")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
