package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"podium/internal/config"
	"podium/internal/logging"
	"podium/internal/store"
)

const userAgent = "Podium-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRecordingComplete(ctx context.Context, rec *store.Recording, report *store.FeedbackReport) error
	NotifyRecordingFailed(ctx context.Context, rec *store.Recording, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		completion: cfg.Notifications.Completion,
		errors:     cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	completion bool
	errors     bool
}

func (n *ntfyService) NotifyRecordingComplete(ctx context.Context, rec *store.Recording, report *store.FeedbackReport) error {
	if !n.completion {
		return nil
	}
	message := "Feedback is ready"
	if report != nil {
		message = fmt.Sprintf("Feedback is ready: overall score %d", report.Overall)
	}
	if rec != nil && strings.TrimSpace(rec.Question) != "" {
		message = fmt.Sprintf("%s\nQuestion: %s", message, strings.TrimSpace(rec.Question))
	}
	data := payload{
		title:   "Podium - Feedback Ready",
		message: message,
		tags:    []string{"podium", "recording", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecordingFailed(ctx context.Context, rec *store.Recording, reason string) error {
	if !n.errors {
		return nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	message := fmt.Sprintf("Processing failed: %s", reason)
	if rec != nil {
		message = fmt.Sprintf("%s\nRecording: %s", message, rec.ID)
	}
	data := payload{
		title:    "Podium - Processing Failed",
		message:  message,
		tags:     []string{"podium", "recording", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Podium - Test",
		message:  "Notification system test",
		tags:     []string{"podium", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRecordingComplete(context.Context, *store.Recording, *store.FeedbackReport) error {
	return nil
}
func (noopService) NotifyRecordingFailed(context.Context, *store.Recording, string) error { return nil }
func (noopService) TestNotification(context.Context) error                                { return nil }

// PipelineNotifier adapts Service to the pipeline's fire-and-forget notifier
// contract: delivery failures are logged, never propagated.
type PipelineNotifier struct {
	service Service
	logger  *slog.Logger
}

// NewPipelineNotifier wraps a Service for pipeline use.
func NewPipelineNotifier(service Service, logger *slog.Logger) *PipelineNotifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PipelineNotifier{service: service, logger: logger}
}

// RecordingComplete publishes a completion event.
func (p *PipelineNotifier) RecordingComplete(ctx context.Context, rec *store.Recording, report *store.FeedbackReport) {
	if err := p.service.NotifyRecordingComplete(ctx, rec, report); err != nil {
		p.logger.Warn("completion notification failed", logging.Error(err))
	}
}

// RecordingFailed publishes a failure event.
func (p *PipelineNotifier) RecordingFailed(ctx context.Context, rec *store.Recording, reason string) {
	if err := p.service.NotifyRecordingFailed(ctx, rec, reason); err != nil {
		p.logger.Warn("failure notification failed", logging.Error(err))
	}
}
