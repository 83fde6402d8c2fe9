package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podium/internal/services"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var scenario string
	var biometricsOnly bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "process <recording-id>",
		Short: "Run transcription and feedback analysis for a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			id := args[0]
			out := cmd.OutOrStdout()

			if biometricsOnly {
				if err := client.TriggerBiometrics(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(out, "Biometric extraction scheduled for %s\n", id)
				return nil
			}

			outcome, err := client.Process(cmd.Context(), id, scenario)
			if err != nil {
				if services.IsNotReady(err) {
					return fmt.Errorf("recording %s is not ready yet; retry shortly (%w)", id, err)
				}
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, outcome)
			}
			renderTranscriptSummary(out, outcome.Transcript)
			renderReport(out, outcome.Report)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "", "Analysis scenario override")
	cmd.Flags().BoolVar(&biometricsOnly, "biometrics", false, "Schedule biometric extraction instead of the main pipeline")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
