package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"podium/internal/config"
	"podium/internal/media"
	"podium/internal/pipeline"
	"podium/internal/services/feedback"
	"podium/internal/store"
	"podium/internal/testsupport"
)

type stubSpeech struct{}

func (stubSpeech) Transcribe(ctx context.Context, recordingID string, media io.Reader, filename, contentType string) (*store.Transcript, error) {
	_, _ = io.Copy(io.Discard, media)
	return &store.Transcript{
		RecordingID: recordingID,
		Text:        "hello world",
		Words: []store.Word{
			{Text: "hello", Start: 0, End: 0.5},
			{Text: "world", Start: 0.6, End: 1.1},
		},
		Duration: 1.1,
	}, nil
}

type stubFeedback struct{}

func (stubFeedback) Analyze(ctx context.Context, input feedback.AnalysisInput) (*store.FeedbackReport, error) {
	return &store.FeedbackReport{RecordingID: input.RecordingID, Model: "stub", Overall: 68}, nil
}

type stubQuestions struct{}

func (stubQuestions) GenerateQuestions(ctx context.Context, topic string, count int) ([]string, error) {
	return []string{"Tell me about " + topic + "."}, nil
}

type testEnv struct {
	cfg    *config.Config
	store  *store.Store
	media  *media.Store
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	st := testsupport.MustOpenStore(t, cfg)
	ms := testsupport.MustOpenMedia(t, cfg)

	pl, err := pipeline.New(pipeline.Options{
		Store:    st,
		Media:    ms,
		Speech:   stubSpeech{},
		Feedback: stubFeedback{},
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	srv, err := New(Options{
		Config:    cfg,
		Store:     st,
		Media:     ms,
		Pipeline:  pl,
		Questions: stubQuestions{},
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{cfg: cfg, store: st, media: ms, server: srv, http: ts}
}

func multipartUpload(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="clip.webm"`}
	header["Content-Type"] = []string{"video/webm"}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("fake-webm-bytes")); err != nil {
		t.Fatalf("write media: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func uploadRecording(t *testing.T, env *testEnv, fields map[string]string) RecordingView {
	t.Helper()
	body, contentType := multipartUpload(t, fields)
	resp, err := http.Post(env.http.URL+"/api/recordings", contentType, body)
	if err != nil {
		t.Fatalf("POST recordings: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, payload)
	}
	var view RecordingView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return view
}

func TestUploadCreatesProcessingRecording(t *testing.T) {
	env := newTestEnv(t, nil)
	view := uploadRecording(t, env, map[string]string{
		"user_ref": "user-1",
		"question": "Why this role?",
		"scenario": "interview",
	})
	if view.Status != string(store.StatusProcessing) {
		t.Fatalf("status = %q, want processing", view.Status)
	}
	if view.SizeBytes != int64(len("fake-webm-bytes")) {
		t.Fatalf("size = %d", view.SizeBytes)
	}
}

func TestUploadRequiresUserRef(t *testing.T) {
	env := newTestEnv(t, nil)
	body, contentType := multipartUpload(t, map[string]string{})
	resp, err := http.Post(env.http.URL+"/api/recordings", contentType, body)
	if err != nil {
		t.Fatalf("POST recordings: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProcessEndpointReturnsReport(t *testing.T) {
	env := newTestEnv(t, nil)
	view := uploadRecording(t, env, map[string]string{"user_ref": "user-1"})

	resp, err := http.Post(env.http.URL+"/api/recordings/"+view.ID+"/process", "application/json", nil)
	if err != nil {
		t.Fatalf("POST process: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, payload)
	}
	var outcome OutcomeResponse
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if outcome.Report == nil || outcome.Report.Overall != 68 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Error != "" {
		t.Fatalf("unexpected error %q", outcome.Error)
	}
}

func TestStatusEndpointUnknownRecording(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.http.URL + "/api/recordings/absent/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionEndpointAggregates(t *testing.T) {
	env := newTestEnv(t, nil)
	first := uploadRecording(t, env, map[string]string{"user_ref": "user-1", "session_token": "sess-1"})
	time.Sleep(5 * time.Millisecond)
	uploadRecording(t, env, map[string]string{"user_ref": "user-1", "session_token": "sess-1"})

	if resp, err := http.Post(env.http.URL+"/api/recordings/"+first.ID+"/process", "application/json", nil); err != nil {
		t.Fatalf("POST process: %v", err)
	} else {
		resp.Body.Close()
	}

	resp, err := http.Get(env.http.URL + "/api/sessions/sess-1")
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var view SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(view.Members) != 2 {
		t.Fatalf("members = %d", len(view.Members))
	}
	if view.Representative.ID != first.ID {
		t.Fatalf("representative = %s, want %s", view.Representative.ID, first.ID)
	}
	if view.Aggregate == nil || *view.Aggregate != 68 {
		t.Fatalf("aggregate = %v, want 68", view.Aggregate)
	}
}

func TestQuestionsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	payload := strings.NewReader(`{"topic": "golang", "count": 1}`)
	resp, err := http.Post(env.http.URL+"/api/questions", "application/json", payload)
	if err != nil {
		t.Fatalf("POST questions: %v", err)
	}
	defer resp.Body.Close()
	var out QuestionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	if len(out.Questions) != 1 || !strings.Contains(out.Questions[0], "golang") {
		t.Fatalf("questions = %v", out.Questions)
	}
}

func TestReferencesEndpointStoresDocument(t *testing.T) {
	env := newTestEnv(t, nil)
	payload := strings.NewReader(`{"user_ref": "user-1", "name": "plan", "type": "txt", "content": "the budget"}`)
	resp, err := http.Post(env.http.URL+"/api/references", "application/json", payload)
	if err != nil {
		t.Fatalf("POST references: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var out ReferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode reference: %v", err)
	}
	doc, err := env.store.GetReferenceDocument(context.Background(), out.ID)
	if err != nil || doc == nil {
		t.Fatalf("stored doc = %v, err = %v", doc, err)
	}
	if doc.Content != "the budget" {
		t.Fatalf("content = %q", doc.Content)
	}
}

func TestMediaSignedAccess(t *testing.T) {
	env := newTestEnv(t, nil)
	view := uploadRecording(t, env, map[string]string{"user_ref": "user-1"})

	resp, err := http.Get(env.http.URL + "/api/recordings/" + view.ID + "/media")
	if err != nil {
		t.Fatalf("GET media link: %v", err)
	}
	defer resp.Body.Close()
	var link MediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		t.Fatalf("decode link: %v", err)
	}

	// The returned URL targets the configured bind address; replay the path
	// and query against the test server.
	idx := strings.Index(link.URL, "/media/")
	if idx < 0 {
		t.Fatalf("url = %q", link.URL)
	}
	blob, err := http.Get(env.http.URL + link.URL[idx:])
	if err != nil {
		t.Fatalf("GET blob: %v", err)
	}
	defer blob.Body.Close()
	if blob.StatusCode != http.StatusOK {
		t.Fatalf("blob status = %d", blob.StatusCode)
	}
	data, _ := io.ReadAll(blob.Body)
	if string(data) != "fake-webm-bytes" {
		t.Fatalf("blob = %q", data)
	}

	tampered, err := http.Get(env.http.URL + link.URL[idx:] + "x")
	if err != nil {
		t.Fatalf("GET tampered: %v", err)
	}
	defer tampered.Body.Close()
	if tampered.StatusCode != http.StatusForbidden {
		t.Fatalf("tampered status = %d, want 403", tampered.StatusCode)
	}
}

func TestBearerAuthGuardsAPI(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "secret-token"
	})

	resp, err := http.Get(env.http.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, env.http.URL+"/api/health", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET health with token: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", authed.StatusCode)
	}
}

type stubNotifier struct {
	tested int
}

func (n *stubNotifier) NotifyRecordingComplete(ctx context.Context, rec *store.Recording, report *store.FeedbackReport) error {
	return nil
}

func (n *stubNotifier) NotifyRecordingFailed(ctx context.Context, rec *store.Recording, reason string) error {
	return nil
}

func (n *stubNotifier) TestNotification(ctx context.Context) error {
	n.tested++
	return nil
}

func TestNotificationTestEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	// No notifier wired: the endpoint reports it as unconfigured.
	resp, err := http.Post(env.http.URL+"/api/notifications/test", "application/json", nil)
	if err != nil {
		t.Fatalf("POST test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	notifier := &stubNotifier{}
	srv, err := New(Options{
		Config:   env.cfg,
		Store:    env.store,
		Media:    env.media,
		Pipeline: env.server.pipeline,
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	sent, err := http.Post(ts.URL+"/api/notifications/test", "application/json", nil)
	if err != nil {
		t.Fatalf("POST test: %v", err)
	}
	defer sent.Body.Close()
	if sent.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", sent.StatusCode)
	}
	if notifier.tested != 1 {
		t.Fatalf("tested = %d, want 1", notifier.tested)
	}
}

func TestHealthReportsStageAvailability(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.http.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !out.Healthy {
		t.Fatal("expected healthy")
	}
	if !out.Stages["speech"] || !out.Stages["feedback"] {
		t.Fatalf("stages = %v", out.Stages)
	}
	// Biometrics is disabled in the test config.
	if out.Stages["biometrics"] {
		t.Fatalf("stages = %v, biometrics should be unavailable", out.Stages)
	}
}
