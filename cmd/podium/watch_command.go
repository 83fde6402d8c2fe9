package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podium/internal/poll"
	"podium/internal/store"
)

// httpStatusSource adapts the HTTP API to the poll watcher, both for status
// snapshots and for re-triggering processing.
type httpStatusSource struct {
	client   *apiClient
	scenario string
}

func (s httpStatusSource) Status(ctx context.Context, recordingID string) (*poll.Snapshot, error) {
	status, err := s.client.Status(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	return &poll.Snapshot{
		Status:     store.Status(status.Recording.Status),
		Transcript: status.Transcript,
		Report:     status.Report,
	}, nil
}

func (s httpStatusSource) Trigger(ctx context.Context, recordingID string) error {
	_, err := s.client.Process(ctx, recordingID, s.scenario)
	return err
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var scenario string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watch <recording-id>",
		Short: "Poll a recording until feedback is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			return watchRecording(cmd, ctx, client, args[0], scenario, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", "", "Analysis scenario passed when re-triggering processing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func watchRecording(cmd *cobra.Command, ctx *commandContext, client *apiClient, id, scenario string, jsonOutput bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	opts := []poll.Option{}
	if cfg.Poll.IntervalSeconds > 0 {
		opts = append(opts, poll.WithInterval(time.Duration(cfg.Poll.IntervalSeconds)*time.Second))
	}
	if cfg.Poll.MaxAttempts > 0 {
		opts = append(opts, poll.WithMaxPolls(cfg.Poll.MaxAttempts))
	}
	source := httpStatusSource{client: client, scenario: scenario}
	opts = append(opts, poll.WithTrigger(source))
	watcher := poll.NewWatcher(source, opts...)

	out := cmd.OutOrStdout()
	if !jsonOutput {
		fmt.Fprintf(out, "Watching recording %s...\n", id)
	}
	result := watcher.Watch(cmd.Context(), id)
	if jsonOutput {
		return writeJSON(cmd, result)
	}

	switch result.State {
	case poll.StateReady:
		renderTranscriptSummary(out, result.Transcript)
		renderReport(out, result.Report)
		return nil
	case poll.StateFailed:
		return fmt.Errorf("recording %s failed: %s", id, result.Message)
	case poll.StateTimedOut:
		return fmt.Errorf("recording %s: %s", id, result.Message)
	case poll.StateCanceled:
		if result.Err != nil {
			return result.Err
		}
		return fmt.Errorf("watch for %s was canceled", id)
	default:
		if result.Err != nil {
			return result.Err
		}
		return fmt.Errorf("watch for %s ended: %s", id, result.Message)
	}
}
