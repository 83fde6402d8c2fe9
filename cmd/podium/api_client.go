package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"podium/internal/server"
	"podium/internal/services"
)

// apiClient is a thin HTTP client for the podium server's JSON API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 15 * time.Minute},
	}
}

// apiError carries the server's error payload with its status code so
// callers can classify it.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps HTTP status codes back onto the shared error taxonomy so
// errors.Is classification works across the wire.
func (e *apiError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusConflict:
		return services.ErrNotReady
	case http.StatusServiceUnavailable, http.StatusUnauthorized:
		return services.ErrConfiguration
	default:
		return services.ErrTransient
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call server: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var wire struct {
			Error string `json:"error"`
		}
		message := strings.TrimSpace(string(payload))
		if json.Unmarshal(payload, &wire) == nil && wire.Error != "" {
			message = wire.Error
		}
		return &apiError{StatusCode: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

// uploadParams is the multipart payload for a new recording.
type uploadParams struct {
	FilePath         string
	ContentType      string
	UserRef          string
	SessionToken     string
	Question         string
	Scenario         string
	ReferenceRef     string
	ReferenceType    string
	DeclaredDuration float64
	MinDuration      float64
	MaxDuration      float64
}

// mediaContentTypes maps upload file extensions to their content type.
var mediaContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

func (c *apiClient) Upload(ctx context.Context, params uploadParams) (*server.RecordingView, error) {
	file, err := os.Open(params.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	contentType := params.ContentType
	if contentType == "" {
		contentType = mediaContentTypes[strings.ToLower(filepath.Ext(params.FilePath))]
	}
	if contentType == "" {
		return nil, fmt.Errorf("cannot determine content type for %q; pass --content-type", params.FilePath)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fields := map[string]string{
		"user_ref":       params.UserRef,
		"session_token":  params.SessionToken,
		"question":       params.Question,
		"scenario":       params.Scenario,
		"reference_ref":  params.ReferenceRef,
		"reference_type": params.ReferenceType,
	}
	if params.DeclaredDuration > 0 {
		fields["declared_duration"] = strconv.FormatFloat(params.DeclaredDuration, 'f', -1, 64)
	}
	if params.MinDuration > 0 {
		fields["min_duration"] = strconv.FormatFloat(params.MinDuration, 'f', -1, 64)
	}
	if params.MaxDuration > 0 {
		fields["max_duration"] = strconv.FormatFloat(params.MaxDuration, 'f', -1, 64)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("encode upload: %w", err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(params.FilePath)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read media file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	var view server.RecordingView
	if err := c.do(ctx, http.MethodPost, "/api/recordings", &buf, writer.FormDataContentType(), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *apiClient) Recording(ctx context.Context, id string) (*server.RecordingView, error) {
	var view server.RecordingView
	if err := c.do(ctx, http.MethodGet, "/api/recordings/"+url.PathEscape(id), nil, "", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *apiClient) Status(ctx context.Context, id string) (*server.StatusResponse, error) {
	var status server.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/recordings/"+url.PathEscape(id)+"/status", nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) Process(ctx context.Context, id, scenario string) (*server.OutcomeResponse, error) {
	path := "/api/recordings/" + url.PathEscape(id) + "/process"
	if scenario != "" {
		path += "?scenario=" + url.QueryEscape(scenario)
	}
	var outcome server.OutcomeResponse
	if err := c.do(ctx, http.MethodPost, path, nil, "", &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (c *apiClient) TriggerBiometrics(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/recordings/"+url.PathEscape(id)+"/biometrics", nil, "", nil)
}

func (c *apiClient) Recordings(ctx context.Context, userRef string) ([]server.RecordingView, error) {
	var out struct {
		Recordings []server.RecordingView `json:"recordings"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/recordings?user="+url.QueryEscape(userRef), nil, "", &out); err != nil {
		return nil, err
	}
	return out.Recordings, nil
}

func (c *apiClient) Session(ctx context.Context, token string) (*server.SessionResponse, error) {
	var view server.SessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(token), nil, "", &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *apiClient) Questions(ctx context.Context, topic string, count int) ([]string, error) {
	var out server.QuestionsResponse
	req := server.QuestionsRequest{Topic: topic, Count: count}
	if err := c.doJSON(ctx, http.MethodPost, "/api/questions", req, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (c *apiClient) AddReference(ctx context.Context, req server.ReferenceRequest) (*server.ReferenceResponse, error) {
	var out server.ReferenceResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/references", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Health(ctx context.Context) (*server.HealthResponse, error) {
	var out server.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) TestNotification(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/test", nil, "", nil)
}

func (c *apiClient) MediaLink(ctx context.Context, id string) (*server.MediaResponse, error) {
	var out server.MediaResponse
	if err := c.do(ctx, http.MethodGet, "/api/recordings/"+url.PathEscape(id)+"/media", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
