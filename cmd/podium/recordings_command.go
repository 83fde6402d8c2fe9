package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "Inspect recordings",
	}

	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsShowCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsMediaCommand(ctx))

	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	var userRef string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			views, err := client.Recordings(cmd.Context(), userRef)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintf(out, "No recordings for %s\n", userRef)
				return nil
			}
			renderRecordings(out, views)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userRef, "user", "u", "", "Owning user reference (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRecordingsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <recording-id>",
		Short: "Show a recording's status and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			rec := status.Recording
			printHeader(out, fmt.Sprintf("Recording %s", rec.ID))
			fmt.Fprintf(out, "Status:   %s\n", statusLabel(rec.Status))
			fmt.Fprintf(out, "User:     %s\n", rec.UserRef)
			if rec.Question != "" {
				fmt.Fprintf(out, "Question: %s\n", rec.Question)
			}
			if rec.SessionToken != "" {
				fmt.Fprintf(out, "Session:  %s\n", rec.SessionToken)
			}
			fmt.Fprintf(out, "Duration: %s\n", formatSeconds(rec.Duration))
			if rec.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", rec.Error)
			}
			fmt.Fprintln(out)
			renderTranscriptSummary(out, status.Transcript)
			renderReport(out, status.Report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newRecordingsMediaCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media <recording-id>",
		Short: "Print a signed temporary URL for a recording's media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			link, err := client.MediaLink(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link.URL)
			return nil
		},
	}
	return cmd
}
