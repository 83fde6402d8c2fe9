package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var params uploadParams
	var watch bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "upload <media-file>",
		Short: "Upload a recording for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.FilePath = args[0]
			client, err := ctx.client()
			if err != nil {
				return err
			}
			view, err := client.Upload(cmd.Context(), params)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, view)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded recording %s (%s)\n", view.ID, statusLabel(view.Status))
			if !watch {
				fmt.Fprintf(out, "Run `podium process %s` to generate feedback.\n", view.ID)
				return nil
			}
			return watchRecording(cmd, ctx, client, view.ID, params.Scenario, false)
		},
	}

	cmd.Flags().StringVarP(&params.UserRef, "user", "u", "", "Owning user reference (required)")
	cmd.Flags().StringVar(&params.SessionToken, "session", "", "Session token grouping related recordings")
	cmd.Flags().StringVarP(&params.Question, "question", "q", "", "Question the recording answers")
	cmd.Flags().StringVar(&params.Scenario, "scenario", "", "Analysis scenario")
	cmd.Flags().StringVar(&params.ReferenceRef, "reference", "", "Reference document ID to score against")
	cmd.Flags().StringVar(&params.ReferenceType, "reference-type", "", "Reference document type")
	cmd.Flags().StringVar(&params.ContentType, "content-type", "", "Override the detected media content type")
	cmd.Flags().Float64Var(&params.DeclaredDuration, "duration", 0, "Declared recording duration in seconds")
	cmd.Flags().Float64Var(&params.MinDuration, "min-duration", 0, "Minimum expected duration in seconds")
	cmd.Flags().Float64Var(&params.MaxDuration, "max-duration", 0, "Maximum expected duration in seconds")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Trigger processing and wait for feedback")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
