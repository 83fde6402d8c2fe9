package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"podium/internal/services"
)

func chatContentResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{"content": content},
			},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func requestedModel(t *testing.T, r *http.Request) string {
	t.Helper()
	var req struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return req.Model
}

func TestCompleteJSONReturnsContentAndModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Fatalf("unexpected auth header %q", got)
		}
		chatContentResponse(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Models: []string{"demo-model"}})
	content, model, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
	if model != "demo-model" {
		t.Fatalf("model = %q, want demo-model", model)
	}
}

func TestCompleteJSONMissingAPIKey(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Models: []string{"demo-model"}})
	_, _, err := client.CompleteJSON(context.Background(), "system", "user")
	if !services.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no provider calls, got %d", calls)
	}
}

func TestModelNotFoundAdvancesWithoutConsumingRetryBudget(t *testing.T) {
	var models []string
	var sleeps []time.Duration
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		model := requestedModel(t, r)
		models = append(models, model)
		if model == "missing-model" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"model not found"}}`))
			return
		}
		chatContentResponse(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Models: []string{"missing-model", "backup-model"}},
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	_, model, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if model != "backup-model" {
		t.Fatalf("model = %q, want backup-model", model)
	}
	if len(models) != 2 || models[0] != "missing-model" || models[1] != "backup-model" {
		t.Fatalf("models tried = %v", models)
	}
	if len(sleeps) != 0 {
		t.Fatalf("fallback must not sleep, got %v", sleeps)
	}
}

func TestAllCandidatesUnknownReturnsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Models: []string{"a", "b"}})
	_, _, err := client.CompleteJSON(context.Background(), "system", "user")
	if !services.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestTransientErrorsBoundedByRetryBudget(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Models: []string{"demo-model"}},
		WithRetryPolicy(services.RetryPolicy{MaxRetries: 2, Sleeper: func(time.Duration) {}}),
	)
	_, _, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want maxRetries+1 = 3", calls)
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGarbledContentRetriedOnSameModel(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			chatContentResponse(t, w, "I could not produce structured output this time, sorry.")
			return
		}
		chatContentResponse(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Models: []string{"demo-model", "backup-model"}},
		WithRetryPolicy(services.RetryPolicy{MaxRetries: 2, Sleeper: func(time.Duration) {}}),
	)
	content, model, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
	if model != "demo-model" {
		t.Fatalf("model = %q, want demo-model (garbled content must not advance candidates)", model)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestGarbledContentExhaustsRetryBudget(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		chatContentResponse(t, w, "still prose, no document")
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Models: []string{"demo-model"}},
		WithRetryPolicy(services.RetryPolicy{MaxRetries: 2, Sleeper: func(time.Duration) {}}),
	)
	_, _, err := client.CompleteJSON(context.Background(), "system", "user")
	if !services.IsMalformed(err) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want maxRetries+1 = 3", calls)
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetryAfterHintOverridesBackoff(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "4")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		chatContentResponse(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Models: []string{"demo-model"}},
		WithRetryPolicy(services.RetryPolicy{
			MaxRetries: 2,
			BaseDelay:  time.Second,
			MaxDelay:   time.Minute,
			Sleeper:    func(d time.Duration) { sleeps = append(sleeps, d) },
		}),
	)
	if _, _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if len(sleeps) != 1 || sleeps[0] != 4*time.Second {
		t.Fatalf("sleeps = %v, want [4s]", sleeps)
	}
}

func TestHealthCheckCodeFence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatContentResponse(t, w, "```json\n{\"ok\":true}\n```")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Models: []string{"demo-model"}})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestDecodeModelJSONExtractsFromProse(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	content := "Here is the result you asked for: {\"ok\": true} — let me know if you need more."
	if err := DecodeModelJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeModelJSON returned error: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok=true")
	}
}

func TestDecodeModelJSONMalformed(t *testing.T) {
	var parsed map[string]any
	err := DecodeModelJSON("no json here at all", &parsed)
	if !services.IsMalformed(err) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}
