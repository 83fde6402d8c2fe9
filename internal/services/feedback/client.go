package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"podium/internal/services"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 60 * time.Second
)

// Config captures the runtime settings required to talk to the feedback
// provider. Models lists candidate backends in preference order.
type Config struct {
	APIKey         string
	BaseURL        string
	Models         []string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenRouter-style chat completion API with ordered model
// fallback: a backend the provider reports as unknown advances to the next
// candidate without consuming the retry budget.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     services.RetryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy services.RetryPolicy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.policy.Sleeper = sleeper
	}
}

// NewClient constructs a feedback client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	models := make([]string, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			models = append(models, trimmed)
		}
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Models:         models,
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// CompleteJSON issues a JSON-only chat completion with the supplied prompts,
// walking the model candidate list. It returns the raw JSON payload and the
// model that produced it.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return "", "", services.Wrap(services.ErrValidation, "feedback", "complete", "system prompt required", nil)
	}
	if userPrompt == "" {
		return "", "", services.Wrap(services.ErrValidation, "feedback", "complete", "user prompt required", nil)
	}
	if c.cfg.APIKey == "" {
		return "", "", services.Wrap(services.ErrConfiguration, "feedback", "complete", "api key required", nil)
	}
	if len(c.cfg.Models) == 0 {
		return "", "", services.Wrap(services.ErrConfiguration, "feedback", "complete", "no model candidates configured", nil)
	}

	attempts := c.policy.Attempts()
	attempt := 1
	modelIdx := 0
	var lastErr error

	for {
		model := c.cfg.Models[modelIdx]
		payload := chatCompletionRequest{
			Model: model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userPrompt},
			},
			Temperature:    0,
			ResponseFormat: map[string]string{"type": jsonResponseType},
		}

		completion, body, err := c.sendChatRequestOnce(ctx, payload)
		if err == nil {
			content, finishReason := extractCompletionPayload(completion)
			if content == "" {
				msg := fmt.Sprintf("empty content from %s (finish_reason=%q, response_snippet=%s)",
					model, finishReason, summarizePayloadSnippet(string(body)))
				err = services.Wrap(services.ErrTransient, "feedback", "complete", msg, nil)
			} else {
				// Garbled content spends a retry attempt like any other
				// recoverable failure.
				document, extractErr := extractJSONPayload(content)
				if extractErr == nil {
					return document, model, nil
				}
				err = extractErr
			}
		}
		lastErr = err

		// An unknown backend is a fallback trigger, not a retry: move to the
		// next candidate without spending an attempt.
		if isModelNotFound(err) {
			modelIdx++
			if modelIdx >= len(c.cfg.Models) {
				return "", "", services.Wrap(services.ErrNotFound, "feedback", "complete", "no usable model backend", lastErr)
			}
			continue
		}

		hint, retry := services.Retryable(ctx, err)
		if !retry {
			return "", "", err
		}
		if attempt >= attempts {
			return "", "", fmt.Errorf("feedback complete: failed after %d attempts: %w", attempts, lastErr)
		}
		delay := c.policy.Delay(attempt)
		if hint > 0 {
			delay = c.policy.CapDelay(hint)
		}
		if sleepErr := c.policy.Sleep(ctx, delay); sleepErr != nil {
			return "", "", sleepErr
		}
		attempt++
	}
}

// HealthCheck issues a fast ping to verify the API key and a model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, _, err := c.CompleteJSON(ctx,
		"You must respond with JSON only.",
		"Respond with {\"ok\":true}")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeModelJSON(content, &parsed); err != nil {
		return fmt.Errorf("feedback health: parse payload: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("feedback health: unexpected response")
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers mistakenly return the streaming schema (delta) even when
		// stream=false, so tolerate it as a fallback.
		Delta chatCompletionMessage `json:"delta"`
		// Legacy "text" field (completion-style responses).
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

func (c *Client) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "")
	if err != nil {
		return completion, nil, fmt.Errorf("feedback request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("feedback request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, fmt.Errorf("feedback request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completion, nil, fmt.Errorf("feedback request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, fmt.Errorf("feedback request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, body, &services.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, fmt.Errorf("feedback request: decode response: %w", err)
	}
	if completion.Error != nil {
		msg := strings.TrimSpace(completion.Error.Message)
		if looksLikeModelNotFound(completion.Error.Code, msg) {
			return completion, body, services.Wrap(services.ErrNotFound, "feedback", "request", "model backend: "+msg, nil)
		}
		return completion, body, fmt.Errorf("feedback request: api error: %s", msg)
	}
	return completion, body, nil
}

func extractCompletionPayload(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, finishReason
		}
	}
	return "", finishReason
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func isModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	if services.IsNotFound(err) {
		return true
	}
	var statusErr *services.HTTPStatusError
	if errors.As(err, &statusErr) {
		return looksLikeModelNotFound(statusErr.StatusCode, statusErr.Body)
	}
	return false
}

func looksLikeModelNotFound(code int, message string) bool {
	if code == http.StatusNotFound {
		return true
	}
	lowered := strings.ToLower(message)
	if !strings.Contains(lowered, "model") && !strings.Contains(lowered, "endpoint") {
		return false
	}
	return strings.Contains(lowered, "not found") ||
		strings.Contains(lowered, "not_found") ||
		strings.Contains(lowered, "does not exist") ||
		strings.Contains(lowered, "no endpoints")
}
