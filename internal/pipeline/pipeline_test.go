package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"podium/internal/poll"
	"podium/internal/services"
	"podium/internal/services/feedback"
	"podium/internal/store"
	"podium/internal/testsupport"
)

type fakeSpeech struct {
	calls int
	err   error
	words []store.Word
}

func (f *fakeSpeech) Transcribe(ctx context.Context, recordingID string, media io.Reader, filename, contentType string) (*store.Transcript, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	_, _ = io.Copy(io.Discard, media)
	words := f.words
	if words == nil {
		words = []store.Word{
			{Text: "hello", Start: 0, End: 0.5},
			{Text: "world", Start: 0.6, End: 1.2},
		}
	}
	return &store.Transcript{
		RecordingID: recordingID,
		Text:        "hello world",
		Words:       words,
		Duration:    words[len(words)-1].End,
	}, nil
}

type fakeFeedback struct {
	calls  int
	err    error
	inputs []feedback.AnalysisInput
}

func (f *fakeFeedback) Analyze(ctx context.Context, input feedback.AnalysisInput) (*store.FeedbackReport, error) {
	f.calls++
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &store.FeedbackReport{
		RecordingID: input.RecordingID,
		Model:       "fake-model",
		Overall:     75,
		Summary:     "fine",
	}, nil
}

type fakeBiometrics struct {
	calls   int
	err     error
	enabled bool
}

func (f *fakeBiometrics) Enabled() bool { return f.enabled }

func (f *fakeBiometrics) Extract(ctx context.Context, recordingID, mediaURL string) (*store.BiometricArtifact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &store.BiometricArtifact{
		RecordingID: recordingID,
		Timestamps:  []float64{0, 1},
		HeartRate:   []float64{70, 72},
		Breathing:   []float64{14, 15},
		Expressions: []store.Expression{{Label: "neutral", Confidence: 0.9}, {Label: "neutral", Confidence: 0.8}},
	}, nil
}

type fixture struct {
	store      *store.Store
	pipeline   *Pipeline
	speech     *fakeSpeech
	feedback   *fakeFeedback
	biometrics *fakeBiometrics
	recording  *store.Recording
}

func newFixture(t *testing.T, params store.NewRecordingParams) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ms := testsupport.MustOpenMedia(t, cfg)
	rec := testsupport.NewRecording(t, st, params)
	testsupport.UploadRecording(t, st, ms, rec.ID)

	speechClient := &fakeSpeech{}
	feedbackClient := &fakeFeedback{}
	biometricsClient := &fakeBiometrics{enabled: true}
	pl, err := New(Options{
		Store:      st,
		Media:      ms,
		Speech:     speechClient,
		Feedback:   feedbackClient,
		Biometrics: biometricsClient,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return &fixture{
		store:      st,
		pipeline:   pl,
		speech:     speechClient,
		feedback:   feedbackClient,
		biometrics: biometricsClient,
		recording:  rec,
	}
}

func (f *fixture) status(t *testing.T) store.Status {
	t.Helper()
	rec, err := f.store.GetByID(context.Background(), f.recording.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return rec.Status
}

func TestProcessRunsBothStages(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1", Scenario: "interview"})
	outcome := f.pipeline.Process(context.Background(), f.recording.ID, "")
	if outcome.Err != nil {
		t.Fatalf("Process returned error: %v", outcome.Err)
	}
	if outcome.Transcript == nil || outcome.Report == nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	if got := f.status(t); got != store.StatusComplete {
		t.Fatalf("status = %s, want complete", got)
	}
	if f.speech.calls != 1 || f.feedback.calls != 1 {
		t.Fatalf("calls: speech=%d feedback=%d", f.speech.calls, f.feedback.calls)
	}
}

func TestProcessCompletedRecordingMakesNoExternalCalls(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1"})
	if outcome := f.pipeline.Process(context.Background(), f.recording.ID, ""); outcome.Err != nil {
		t.Fatalf("first Process: %v", outcome.Err)
	}

	outcome := f.pipeline.Process(context.Background(), f.recording.ID, "")
	if outcome.Err != nil {
		t.Fatalf("second Process: %v", outcome.Err)
	}
	if outcome.Report == nil || outcome.Report.Overall != 75 {
		t.Fatalf("stored report = %+v", outcome.Report)
	}
	if f.speech.calls != 1 || f.feedback.calls != 1 {
		t.Fatalf("completed recording triggered external calls: speech=%d feedback=%d", f.speech.calls, f.feedback.calls)
	}
}

func TestProcessSpeechFailureMarksFailed(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1"})
	f.speech.err = errors.New("upstream exploded")

	outcome := f.pipeline.Process(context.Background(), f.recording.ID, "")
	if outcome.Err == nil {
		t.Fatal("expected error")
	}
	if got := f.status(t); got != store.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	rec, _ := f.store.GetByID(context.Background(), f.recording.ID)
	if !strings.Contains(rec.ErrorMessage, "upstream exploded") {
		t.Fatalf("error message = %q", rec.ErrorMessage)
	}
}

func TestProcessFeedbackFailureLeavesRecordingRetryable(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1"})
	f.feedback.err = errors.New("provider down")

	outcome := f.pipeline.Process(context.Background(), f.recording.ID, "")
	if !services.IsNotReady(outcome.Err) {
		t.Fatalf("expected not-ready error, got %v", outcome.Err)
	}
	if outcome.Transcript == nil {
		t.Fatal("transcript must survive a feedback failure")
	}
	if got := f.status(t); got != store.StatusProcessing {
		t.Fatalf("status = %s, want processing", got)
	}

	// A later invocation retries analysis without re-transcribing.
	f.feedback.err = nil
	outcome = f.pipeline.Process(context.Background(), f.recording.ID, "")
	if outcome.Err != nil {
		t.Fatalf("retry Process: %v", outcome.Err)
	}
	if f.speech.calls != 1 {
		t.Fatalf("speech calls = %d, want 1", f.speech.calls)
	}
	if got := f.status(t); got != store.StatusComplete {
		t.Fatalf("status = %s, want complete", got)
	}
}

func TestWatchRecoversRecordingParkedByFeedbackFailure(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1"})
	f.feedback.err = errors.New("provider down")

	outcome := f.pipeline.Process(context.Background(), f.recording.ID, "")
	if !services.IsNotReady(outcome.Err) {
		t.Fatalf("expected not-ready error, got %v", outcome.Err)
	}
	if got := f.status(t); got != store.StatusProcessing {
		t.Fatalf("status = %s, want processing", got)
	}

	// The provider comes back; a watch over the store must re-kick the
	// pipeline rather than wait out its poll budget.
	f.feedback.err = nil
	watcher := poll.NewWatcher(
		poll.NewStoreSource(f.store),
		poll.WithTrigger(poll.TriggerFunc(func(ctx context.Context, recordingID string) error {
			return f.pipeline.Process(ctx, recordingID, "").Err
		})),
		poll.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
		poll.WithMaxPolls(5),
	)

	result := watcher.Watch(context.Background(), f.recording.ID)
	if result.State != poll.StateReady {
		t.Fatalf("state = %s, want ready (err=%v msg=%q)", result.State, result.Err, result.Message)
	}
	if result.Report == nil || result.Report.Overall != 75 {
		t.Fatalf("report = %+v", result.Report)
	}
	if f.feedback.calls != 2 {
		t.Fatalf("feedback calls = %d, want 2 (parked attempt plus the watch re-kick)", f.feedback.calls)
	}
	if f.speech.calls != 1 {
		t.Fatalf("speech calls = %d, want 1 (transcript reused)", f.speech.calls)
	}
	if got := f.status(t); got != store.StatusComplete {
		t.Fatalf("status = %s, want complete", got)
	}
}

func TestProcessBiometricsFailureDoesNotBlockCompletion(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1"})
	f.biometrics.err = errors.New("camera feed unusable")

	if err := f.pipeline.ProcessBiometrics(context.Background(), f.recording.ID); err == nil {
		t.Fatal("expected extraction error")
	}
	if got := f.status(t); got != store.StatusProcessing {
		t.Fatalf("status = %s, want processing after revert", got)
	}

	outcome := f.pipeline.Process(context.Background(), f.recording.ID, "")
	if outcome.Err != nil {
		t.Fatalf("Process after biometric failure: %v", outcome.Err)
	}
	if got := f.status(t); got != store.StatusComplete {
		t.Fatalf("status = %s, want complete", got)
	}
}

func TestProcessBiometricsStoresArtifactAndReverts(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1"})
	if err := f.pipeline.ProcessBiometrics(context.Background(), f.recording.ID); err != nil {
		t.Fatalf("ProcessBiometrics: %v", err)
	}
	if got := f.status(t); got != store.StatusProcessing {
		t.Fatalf("status = %s, want processing", got)
	}
	artifact, err := f.store.GetBiometrics(context.Background(), f.recording.ID)
	if err != nil {
		t.Fatalf("GetBiometrics: %v", err)
	}
	if artifact == nil || len(artifact.Timestamps) != 2 {
		t.Fatalf("artifact = %+v", artifact)
	}

	// The stored artifact flows into analysis.
	if outcome := f.pipeline.Process(context.Background(), f.recording.ID, ""); outcome.Err != nil {
		t.Fatalf("Process: %v", outcome.Err)
	}
	if len(f.feedback.inputs) != 1 || f.feedback.inputs[0].Biometrics == nil {
		t.Fatal("analysis input missing biometric artifact")
	}
}

func TestProcessBiometricsDisabled(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1"})
	f.biometrics.enabled = false
	err := f.pipeline.ProcessBiometrics(context.Background(), f.recording.ID)
	if !services.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if f.biometrics.calls != 0 {
		t.Fatalf("extract calls = %d, want 0", f.biometrics.calls)
	}
}

func TestProcessDeclaredDurationWinsOverTimeline(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1", DeclaredDuration: 90})
	if outcome := f.pipeline.Process(context.Background(), f.recording.ID, ""); outcome.Err != nil {
		t.Fatalf("Process: %v", outcome.Err)
	}
	rec, _ := f.store.GetByID(context.Background(), f.recording.ID)
	if rec.Duration != 90 {
		t.Fatalf("Duration = %v, want declared 90", rec.Duration)
	}
	if f.feedback.inputs[0].Duration != 90 {
		t.Fatalf("analysis duration = %v, want 90", f.feedback.inputs[0].Duration)
	}
}

func TestProcessUnknownRecording(t *testing.T) {
	f := newFixture(t, store.NewRecordingParams{UserRef: "user-1"})
	outcome := f.pipeline.Process(context.Background(), "no-such-id", "")
	if !services.IsNotFound(outcome.Err) {
		t.Fatalf("expected not-found error, got %v", outcome.Err)
	}
}
