package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"podium/internal/logging"
	"podium/internal/media"
	"podium/internal/notifications"
	"podium/internal/pipeline"
	"podium/internal/server"
	"podium/internal/services/biometrics"
	"podium/internal/services/feedback"
	"podium/internal/services/speech"
	"podium/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the podium server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServeProcess(cmd, ctx)
		},
	}
}

func runServeProcess(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	recordStore, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer recordStore.Close()

	mediaStore, err := media.NewStore(media.Config{
		DataDir:          cfg.Paths.DataDir,
		SigningSecret:    cfg.Media.SigningSecret,
		MaxUploadMiB:     cfg.Media.MaxUploadMiB,
		AccessTTLSeconds: cfg.Media.AccessTTLSeconds,
	})
	if err != nil {
		return fmt.Errorf("open media store: %w", err)
	}

	speechClient := speech.NewClient(speech.Config{
		BaseURL:        cfg.Speech.BaseURL,
		APIKey:         cfg.Speech.APIKey,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
	})
	feedbackClient := feedback.NewClient(feedback.Config{
		BaseURL:        cfg.Feedback.BaseURL,
		APIKey:         cfg.Feedback.APIKey,
		Models:         cfg.Feedback.Models,
		Referer:        cfg.Feedback.Referer,
		Title:          cfg.Feedback.Title,
		TimeoutSeconds: cfg.Feedback.TimeoutSeconds,
	})
	biometricsClient := biometrics.NewClient(biometrics.Config{
		Enabled:        cfg.Biometrics.Enabled,
		BaseURL:        cfg.Biometrics.BaseURL,
		APIKey:         cfg.Biometrics.APIKey,
		TimeoutSeconds: cfg.Biometrics.TimeoutSeconds,
	})

	notifier := notifications.NewService(cfg)
	// The test endpoint should report "not configured" rather than silently
	// succeeding through the noop service.
	var serverNotifier notifications.Service
	if cfg.Notifications.NtfyTopic != "" {
		serverNotifier = notifier
	}

	// The pipeline needs signed media URLs the server mints; the server needs
	// the pipeline. Resolve the cycle with a late-bound hook.
	var srv *server.Server
	pl, err := pipeline.New(pipeline.Options{
		Store:      recordStore,
		Media:      mediaStore,
		Speech:     speechClient,
		Feedback:   feedbackClient,
		Biometrics: biometricsClient,
		Notifier:   notifications.NewPipelineNotifier(notifier, logger),
		Logger:     logger,
		MediaURL: func(locator string) string {
			if srv == nil {
				return ""
			}
			return srv.MediaURL(locator)
		},
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	srv, err = server.New(server.Options{
		Config:    cfg,
		Logger:    logger,
		Store:     recordStore,
		Media:     mediaStore,
		Pipeline:  pl,
		Questions: feedbackClient,
		Notifier:  serverNotifier,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	if err := srv.Start(signalCtx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "podium server listening on %s\n", srv.Addr())

	<-signalCtx.Done()
	logger.Info("podium server shutting down")
	return nil
}
