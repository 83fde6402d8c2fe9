package poll

import (
	"context"
	"sync"
	"testing"
	"time"

	"podium/internal/services"
	"podium/internal/store"
)

type scriptedSource struct {
	mu        sync.Mutex
	calls     int
	snapshots []Snapshot
	errs      []error
	final     Snapshot
}

func (s *scriptedSource) Status(ctx context.Context, recordingID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx < len(s.snapshots) {
		snap := s.snapshots[idx]
		return &snap, nil
	}
	snap := s.final
	return &snap, nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type scriptedTrigger struct {
	mu     sync.Mutex
	calls  int
	errs   []error
	onCall func(call int)
}

func (s *scriptedTrigger) Trigger(ctx context.Context, recordingID string) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	var err error
	if call-1 < len(s.errs) {
		err = s.errs[call-1]
	}
	onCall := s.onCall
	s.mu.Unlock()
	if onCall != nil {
		onCall(call)
	}
	return err
}

func (s *scriptedTrigger) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestWatchStopsAtPollCeiling(t *testing.T) {
	source := &scriptedSource{final: Snapshot{Status: store.StatusAnalyzing}}
	watcher := NewWatcher(source, WithSleep(noSleep))

	result := watcher.Watch(context.Background(), "rec-1")
	if result.State != StateTimedOut {
		t.Fatalf("state = %s, want timed_out", result.State)
	}
	if result.Message != "processing is taking longer than expected" {
		t.Fatalf("message = %q", result.Message)
	}
	if source.callCount() != DefaultMaxPolls {
		t.Fatalf("polls = %d, want exactly %d", source.callCount(), DefaultMaxPolls)
	}
}

func TestWatchReturnsReadyReport(t *testing.T) {
	source := &scriptedSource{
		snapshots: []Snapshot{
			{Status: store.StatusTranscribing},
			{Status: store.StatusAnalyzing, Transcript: &store.Transcript{RecordingID: "rec-1"}},
		},
		final: Snapshot{
			Status:     store.StatusComplete,
			Transcript: &store.Transcript{RecordingID: "rec-1"},
			Report:     &store.FeedbackReport{RecordingID: "rec-1", Overall: 82},
		},
	}
	watcher := NewWatcher(source, WithSleep(noSleep))

	result := watcher.Watch(context.Background(), "rec-1")
	if result.State != StateReady {
		t.Fatalf("state = %s, want ready", result.State)
	}
	if result.Report == nil || result.Report.Overall != 82 {
		t.Fatalf("report = %+v", result.Report)
	}
	if source.callCount() != 3 {
		t.Fatalf("polls = %d, want 3", source.callCount())
	}
}

func TestWatchFailedRecordingDistinctFromTimeout(t *testing.T) {
	source := &scriptedSource{final: Snapshot{Status: store.StatusFailed}}
	watcher := NewWatcher(source, WithSleep(noSleep))

	result := watcher.Watch(context.Background(), "rec-1")
	if result.State != StateFailed {
		t.Fatalf("state = %s, want failed", result.State)
	}
	if result.Message != "processing failed" {
		t.Fatalf("message = %q", result.Message)
	}
	if source.callCount() != 1 {
		t.Fatalf("polls = %d, want 1", source.callCount())
	}
}

func TestWatchConfigurationErrorStopsImmediately(t *testing.T) {
	source := &scriptedSource{
		errs: []error{services.Wrap(services.ErrConfiguration, "poll", "status", "api token missing", nil)},
	}
	watcher := NewWatcher(source, WithSleep(noSleep))

	result := watcher.Watch(context.Background(), "rec-1")
	if result.State != StateConfigError {
		t.Fatalf("state = %s, want config_error", result.State)
	}
	if source.callCount() != 1 {
		t.Fatalf("polls = %d, want 1", source.callCount())
	}
}

func TestWatchTransientErrorSpendsAttempt(t *testing.T) {
	source := &scriptedSource{
		errs: []error{services.Wrap(services.ErrTransient, "poll", "status", "blip", nil)},
		final: Snapshot{
			Status: store.StatusComplete,
			Report: &store.FeedbackReport{RecordingID: "rec-1", Overall: 70},
		},
	}
	watcher := NewWatcher(source, WithSleep(noSleep))

	result := watcher.Watch(context.Background(), "rec-1")
	if result.State != StateReady {
		t.Fatalf("state = %s, want ready", result.State)
	}
	if source.callCount() != 2 {
		t.Fatalf("polls = %d, want 2", source.callCount())
	}
}

func TestWatchRetriggersStalledProcessing(t *testing.T) {
	source := &scriptedSource{final: Snapshot{Status: store.StatusProcessing}}
	trigger := &scriptedTrigger{
		// The first kick fails like a provider still recovering; the second
		// goes through and the report lands before the next poll.
		errs: []error{services.Wrap(services.ErrNotReady, "pipeline", "analyze", "feedback unavailable, retry later", nil)},
	}
	trigger.onCall = func(call int) {
		if call == 2 {
			source.mu.Lock()
			source.final = Snapshot{
				Status: store.StatusComplete,
				Report: &store.FeedbackReport{RecordingID: "rec-1", Overall: 75},
			}
			source.mu.Unlock()
		}
	}
	watcher := NewWatcher(source, WithSleep(noSleep), WithTrigger(trigger))

	result := watcher.Watch(context.Background(), "rec-1")
	if result.State != StateReady {
		t.Fatalf("state = %s, want ready", result.State)
	}
	if result.Report == nil || result.Report.Overall != 75 {
		t.Fatalf("report = %+v", result.Report)
	}
	if trigger.callCount() != 2 {
		t.Fatalf("trigger calls = %d, want 2", trigger.callCount())
	}
	if source.callCount() != 3 {
		t.Fatalf("polls = %d, want 3", source.callCount())
	}
}

func TestWatchTriggerConfigurationErrorStopsImmediately(t *testing.T) {
	source := &scriptedSource{final: Snapshot{Status: store.StatusProcessing}}
	trigger := &scriptedTrigger{
		errs: []error{services.Wrap(services.ErrConfiguration, "pipeline", "analyze", "api key required", nil)},
	}
	watcher := NewWatcher(source, WithSleep(noSleep), WithTrigger(trigger))

	result := watcher.Watch(context.Background(), "rec-1")
	if result.State != StateConfigError {
		t.Fatalf("state = %s, want config_error", result.State)
	}
	if !services.IsConfiguration(result.Err) {
		t.Fatalf("err = %v, want configuration error", result.Err)
	}
	if source.callCount() != 1 || trigger.callCount() != 1 {
		t.Fatalf("polls = %d triggers = %d, want 1 and 1", source.callCount(), trigger.callCount())
	}
}

func TestWatchNewRecordingCancelsPending(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	source := &scriptedSource{final: Snapshot{Status: store.StatusAnalyzing}}
	// The first sleep blocks until its context is canceled; every later
	// sleep returns immediately so the superseding watch can run to its
	// ceiling.
	watcher := NewWatcher(source,
		WithSleep(func(ctx context.Context, d time.Duration) error {
			blocking := false
			once.Do(func() { blocking = true })
			if blocking {
				close(started)
				<-ctx.Done()
			}
			return ctx.Err()
		}),
	)

	done := make(chan Result, 1)
	go func() {
		done <- watcher.Watch(context.Background(), "rec-old")
	}()
	<-started

	// Switching to a new recording supersedes the loop in flight and starts
	// its own budget from zero.
	second := watcher.Watch(context.Background(), "rec-new")
	if second.State != StateTimedOut {
		t.Fatalf("second state = %s, want timed_out", second.State)
	}

	select {
	case firstResult := <-done:
		if firstResult.State != StateCanceled {
			t.Fatalf("first state = %s, want canceled", firstResult.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded watch did not end")
	}
}
