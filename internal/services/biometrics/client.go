package biometrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podium/internal/services"
	"podium/internal/store"
)

const defaultHTTPTimeout = 120 * time.Second

// Config captures the runtime settings for the biometric extraction service.
// A disabled or keyless config turns the stage into a no-op at the pipeline
// level; calling the client directly still requires credentials.
type Config struct {
	Enabled        bool
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client talks to the physiological-signal extraction service. Biometric
// output is advisory: callers treat extraction failures as non-fatal.
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

// NewClient constructs a biometrics client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Enabled:        cfg.Enabled,
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Enabled reports whether the service is configured for use.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.APIKey != "" && c.cfg.BaseURL != ""
}

// Extract submits the recording's media URL for physiological analysis and
// returns the aligned signal series.
func (c *Client) Extract(ctx context.Context, recordingID, mediaURL string) (*store.BiometricArtifact, error) {
	if recordingID == "" {
		return nil, services.Wrap(services.ErrValidation, "biometrics", "extract", "recording id required", nil)
	}
	if strings.TrimSpace(mediaURL) == "" {
		return nil, services.Wrap(services.ErrValidation, "biometrics", "extract", "media url required", nil)
	}
	if !c.cfg.Enabled {
		return nil, services.Wrap(services.ErrConfiguration, "biometrics", "extract", "service disabled", nil)
	}
	if c.cfg.APIKey == "" || c.cfg.BaseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "biometrics", "extract", "base url and api key required", nil)
	}

	var payload map[string]json.RawMessage
	err := services.Run(ctx, c.policy, "biometrics extract", func(ctx context.Context) error {
		body, err := c.sendAnalyzeRequest(ctx, mediaURL)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return services.Wrap(services.ErrMalformed, "biometrics", "extract", "decode response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	artifact, err := normalizeArtifact(recordingID, payload)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// HealthCheck verifies the service answers on its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Enabled() {
		return services.Wrap(services.ErrConfiguration, "biometrics", "health", "service not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("biometrics health: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("biometrics health: http error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("biometrics health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) sendAnalyzeRequest(ctx context.Context, mediaURL string) ([]byte, error) {
	encoded, err := json.Marshal(map[string]string{"video_url": mediaURL})
	if err != nil {
		return nil, fmt.Errorf("biometrics request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/analyze", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("biometrics request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("biometrics request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("biometrics request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &services.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	return body, nil
}

// artifactKeyAliases folds the key spellings observed from providers onto
// canonical series names. Unknown keys are dropped.
var artifactKeyAliases = map[string]string{
	"timestamps":         "timestamps",
	"times":              "timestamps",
	"time_axis":          "timestamps",
	"heartrate":          "heart_rate",
	"heart_rate":         "heart_rate",
	"bpm":                "heart_rate",
	"breathing":          "breathing",
	"breathing_rate":     "breathing",
	"respiration":        "breathing",
	"expressions":        "expressions",
	"facial_expressions": "expressions",
}

func normalizeArtifact(recordingID string, payload map[string]json.RawMessage) (*store.BiometricArtifact, error) {
	canonical := make(map[string]json.RawMessage, len(payload))
	for key, value := range payload {
		folded := strings.ToLower(strings.TrimSpace(key))
		if name, ok := artifactKeyAliases[folded]; ok {
			if _, exists := canonical[name]; !exists {
				canonical[name] = value
			}
		}
	}

	artifact := &store.BiometricArtifact{RecordingID: recordingID}
	if err := decodeSeries(canonical["timestamps"], &artifact.Timestamps); err != nil {
		return nil, services.Wrap(services.ErrMalformed, "biometrics", "extract", "timestamps series", err)
	}
	if err := decodeSeries(canonical["heart_rate"], &artifact.HeartRate); err != nil {
		return nil, services.Wrap(services.ErrMalformed, "biometrics", "extract", "heart rate series", err)
	}
	if err := decodeSeries(canonical["breathing"], &artifact.Breathing); err != nil {
		return nil, services.Wrap(services.ErrMalformed, "biometrics", "extract", "breathing series", err)
	}
	if raw, ok := canonical["expressions"]; ok && len(raw) > 0 {
		expressions, err := decodeExpressions(raw)
		if err != nil {
			return nil, services.Wrap(services.ErrMalformed, "biometrics", "extract", "expressions series", err)
		}
		artifact.Expressions = expressions
	}

	if len(artifact.Timestamps) == 0 {
		return nil, services.Wrap(services.ErrMalformed, "biometrics", "extract", "response carried no timestamp axis", nil)
	}
	if !artifact.Aligned() {
		return nil, services.Wrap(services.ErrMalformed, "biometrics", "extract", "series lengths disagree with timestamp axis", nil)
	}
	return artifact, nil
}

func decodeSeries(raw json.RawMessage, target *[]float64) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, target)
}

// decodeExpressions accepts both provider shapes for the expression series:
// bare label strings, and objects carrying a label plus a confidence score.
func decodeExpressions(raw json.RawMessage) ([]store.Expression, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	expressions := make([]store.Expression, 0, len(entries))
	for i, entry := range entries {
		var label string
		if err := json.Unmarshal(entry, &label); err == nil {
			expressions = append(expressions, store.Expression{Label: label})
			continue
		}
		var obj struct {
			Label      string  `json:"label"`
			Expression string  `json:"expression"`
			Confidence float64 `json:"confidence"`
		}
		if err := json.Unmarshal(entry, &obj); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if obj.Label == "" {
			obj.Label = obj.Expression
		}
		expressions = append(expressions, store.Expression{Label: obj.Label, Confidence: obj.Confidence})
	}
	return expressions, nil
}
