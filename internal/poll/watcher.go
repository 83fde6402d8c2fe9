// Package poll is the client-side status watcher: it polls a recording's
// processing status on a fixed interval until a report is ready, the
// recording fails, or the poll ceiling is reached. When configured with a
// trigger it also re-kicks processing on every poll that finds no report.
package poll

import (
	"context"
	"sync"
	"time"

	"podium/internal/services"
	"podium/internal/store"
)

const (
	// DefaultInterval between polls.
	DefaultInterval = 3 * time.Second
	// DefaultMaxPolls before the watcher gives up.
	DefaultMaxPolls = 20
)

// State classifies how a watch ended.
type State string

const (
	// StateReady means the report arrived.
	StateReady State = "ready"
	// StateFailed means processing failed server-side.
	StateFailed State = "failed"
	// StateTimedOut means the poll ceiling was reached with processing still
	// under way. It is a softer signal than failure.
	StateTimedOut State = "timed_out"
	// StateConfigError means polling cannot succeed no matter how long we
	// wait; the watcher stops immediately.
	StateConfigError State = "config_error"
	// StateCanceled means the context ended or a newer watch superseded this
	// one.
	StateCanceled State = "canceled"
)

// Result is the terminal outcome of a watch.
type Result struct {
	State      State
	Transcript *store.Transcript
	Report     *store.FeedbackReport
	Message    string
	Err        error
}

// Snapshot is one observed view of a recording's progress.
type Snapshot struct {
	Status     store.Status
	Transcript *store.Transcript
	Report     *store.FeedbackReport
}

// StatusSource produces progress snapshots for a recording.
type StatusSource interface {
	Status(ctx context.Context, recordingID string) (*Snapshot, error)
}

// ProcessTrigger kicks processing for a recording. The watcher calls it on
// every poll that finds no report yet, so a recording parked by an earlier
// transient failure is picked back up instead of waiting out the ceiling.
type ProcessTrigger interface {
	Trigger(ctx context.Context, recordingID string) error
}

// TriggerFunc adapts a function to the ProcessTrigger interface.
type TriggerFunc func(ctx context.Context, recordingID string) error

// Trigger calls f.
func (f TriggerFunc) Trigger(ctx context.Context, recordingID string) error {
	return f(ctx, recordingID)
}

// Watcher polls one recording at a time. Starting a watch for a new
// recording cancels the watch in flight and starts the counter over; all
// state is per-watcher, so independent watchers never interfere.
type Watcher struct {
	source   StatusSource
	trigger  ProcessTrigger
	interval time.Duration
	maxPolls int
	sleep    func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	recording string
	cancel    context.CancelFunc
}

// Option customizes a watcher.
type Option func(*Watcher)

// WithInterval overrides the poll interval.
func WithInterval(interval time.Duration) Option {
	return func(w *Watcher) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithMaxPolls overrides the poll ceiling.
func WithMaxPolls(max int) Option {
	return func(w *Watcher) {
		if max > 0 {
			w.maxPolls = max
		}
	}
}

// WithTrigger sets the trigger the watcher invokes whenever a poll finds no
// report and no terminal failure. Without one the watcher only observes.
func WithTrigger(trigger ProcessTrigger) Option {
	return func(w *Watcher) {
		w.trigger = trigger
	}
}

// WithSleep overrides how the watcher waits between polls (useful for tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Watcher) {
		if sleep != nil {
			w.sleep = sleep
		}
	}
}

// NewWatcher returns a watcher over the given source.
func NewWatcher(source StatusSource, opts ...Option) *Watcher {
	w := &Watcher{
		source:   source,
		interval: DefaultInterval,
		maxPolls: DefaultMaxPolls,
		sleep:    sleepWithContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch blocks until the recording resolves or the poll budget runs out.
// Calling Watch again, for any recording, cancels the watch in flight.
func (w *Watcher) Watch(ctx context.Context, recordingID string) Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.recording = recordingID
	w.cancel = cancel
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.recording == recordingID {
			w.recording = ""
			w.cancel = nil
		}
		w.mu.Unlock()
	}()

	for attempt := 1; attempt <= w.maxPolls; attempt++ {
		snapshot, err := w.source.Status(ctx, recordingID)
		switch {
		case err != nil && (services.IsConfiguration(err) || services.IsValidation(err) || services.IsNotFound(err)):
			return Result{State: StateConfigError, Err: err, Message: "polling cannot succeed: " + err.Error()}
		case ctx.Err() != nil:
			return Result{State: StateCanceled, Err: ctx.Err()}
		case err != nil:
			// Transient: spend the attempt and keep polling.
		case snapshot.Report != nil:
			return Result{State: StateReady, Transcript: snapshot.Transcript, Report: snapshot.Report}
		case snapshot.Status == store.StatusFailed:
			return Result{State: StateFailed, Transcript: snapshot.Transcript, Message: "processing failed"}
		case w.trigger != nil:
			// No report and no terminal failure: re-kick processing so a
			// recording parked by a transient failure makes progress.
			triggerErr := w.trigger.Trigger(ctx, recordingID)
			switch {
			case triggerErr == nil:
			case services.IsConfiguration(triggerErr) || services.IsValidation(triggerErr) || services.IsNotFound(triggerErr):
				return Result{State: StateConfigError, Err: triggerErr, Message: "processing cannot succeed: " + triggerErr.Error()}
			case ctx.Err() != nil:
				return Result{State: StateCanceled, Err: ctx.Err()}
			default:
				// Not-ready and transient trigger failures spend the attempt.
			}
		}

		if attempt == w.maxPolls {
			break
		}
		if err := w.sleep(ctx, w.interval); err != nil {
			return Result{State: StateCanceled, Err: err}
		}
	}
	return Result{State: StateTimedOut, Message: "processing is taking longer than expected"}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
