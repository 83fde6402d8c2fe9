package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"podium/internal/services"
	"podium/internal/store"
)

const (
	defaultBaseURL     = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultModelID     = "scribe_v1"
	defaultHTTPTimeout = 300 * time.Second
)

// Config captures the runtime settings for the transcription service.
type Config struct {
	BaseURL        string
	APIKey         string
	ModelID        string
	TimeoutSeconds int
}

// Client transcribes recorded audio through an ElevenLabs-style
// speech-to-text API and derives word-level delivery metrics locally.
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

// NewClient constructs a speech client from the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			ModelID:        strings.TrimSpace(cfg.ModelID),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.ModelID == "" {
		client.cfg.ModelID = defaultModelID
	}
	return client
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Words []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

// Transcribe uploads the recording's audio and returns the transcript with
// word timings and derived delivery metrics. The media is buffered so the
// upload can be retried.
func (c *Client) Transcribe(ctx context.Context, recordingID string, media io.Reader, filename, contentType string) (*store.Transcript, error) {
	if recordingID == "" {
		return nil, services.Wrap(services.ErrValidation, "speech", "transcribe", "recording id required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "speech", "transcribe", "api key required", nil)
	}
	data, err := io.ReadAll(media)
	if err != nil {
		return nil, fmt.Errorf("speech transcribe: read media: %w", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrValidation, "speech", "transcribe", "media is empty", nil)
	}

	var parsed transcriptionResponse
	err = services.Run(ctx, c.policy, "speech transcribe", func(ctx context.Context) error {
		body, err := c.sendTranscriptionRequest(ctx, data, filename, contentType)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return services.Wrap(services.ErrMalformed, "speech", "transcribe", "decode response", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	words := make([]store.Word, 0, len(parsed.Words))
	for _, w := range parsed.Words {
		// Providers interleave spacing and audio-event entries with the words.
		if w.Type != "" && w.Type != "word" {
			continue
		}
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		words = append(words, store.Word{Text: text, Start: w.Start, End: w.End, Confidence: w.Confidence})
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" && len(words) == 0 {
		return nil, services.Wrap(services.ErrMalformed, "speech", "transcribe", "response carried no transcript", nil)
	}
	if text == "" {
		text = joinWords(words)
	}

	transcript := &store.Transcript{
		RecordingID: recordingID,
		Text:        text,
		Words:       words,
	}
	transcript.Duration = transcript.LastWordEnd()
	transcript.Metrics = ComputeMetrics(words, transcript.Duration)
	return transcript, nil
}

func (c *Client) sendTranscriptionRequest(ctx context.Context, data []byte, filename, contentType string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if filename == "" {
		filename = "recording"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("speech request: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("speech request: write media: %w", err)
	}
	if err := writer.WriteField("model_id", c.cfg.ModelID); err != nil {
		return nil, fmt.Errorf("speech request: write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("speech request: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech request: read body: %w", err)
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

func joinWords(words []store.Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
