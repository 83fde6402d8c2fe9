package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"podium/internal/logging"
	"podium/internal/media"
	"podium/internal/services"
	"podium/internal/services/feedback"
	"podium/internal/services/speech"
	"podium/internal/store"
)

// SpeechClient transcribes uploaded media.
type SpeechClient interface {
	Transcribe(ctx context.Context, recordingID string, media io.Reader, filename, contentType string) (*store.Transcript, error)
}

// FeedbackClient scores a transcribed recording.
type FeedbackClient interface {
	Analyze(ctx context.Context, input feedback.AnalysisInput) (*store.FeedbackReport, error)
}

// BiometricsClient extracts physiological signals from recorded video.
type BiometricsClient interface {
	Enabled() bool
	Extract(ctx context.Context, recordingID, mediaURL string) (*store.BiometricArtifact, error)
}

// Notifier publishes recording lifecycle events. Implementations must be
// non-blocking best-effort; pipeline progress never depends on them.
type Notifier interface {
	RecordingComplete(ctx context.Context, rec *store.Recording, report *store.FeedbackReport)
	RecordingFailed(ctx context.Context, rec *store.Recording, reason string)
}

// Outcome carries whatever artifacts a processing run produced. Err is set
// when the run stopped short of a stored report.
type Outcome struct {
	Transcript *store.Transcript
	Report     *store.FeedbackReport
	Err        error
}

// Pipeline drives a recording through transcription and analysis, with
// biometric extraction running out of band.
type Pipeline struct {
	store      *store.Store
	media      *media.Store
	speech     SpeechClient
	feedback   FeedbackClient
	biometrics BiometricsClient
	notifier   Notifier
	logger     *slog.Logger
	mediaURL   func(locator string) string
}

// Options configures a Pipeline. Store, Media, Speech and Feedback are
// required; the rest are optional.
type Options struct {
	Store      *store.Store
	Media      *media.Store
	Speech     SpeechClient
	Feedback   FeedbackClient
	Biometrics BiometricsClient
	Notifier   Notifier
	Logger     *slog.Logger
	// MediaURL renders a locator as an externally reachable URL for services
	// that fetch media themselves.
	MediaURL func(locator string) string
}

// New validates the options and returns the pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Store == nil || opts.Media == nil || opts.Speech == nil || opts.Feedback == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "store, media, speech and feedback are required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		store:      opts.Store,
		media:      opts.Media,
		speech:     opts.Speech,
		feedback:   opts.Feedback,
		biometrics: opts.Biometrics,
		notifier:   opts.Notifier,
		logger:     logger,
		mediaURL:   opts.MediaURL,
	}, nil
}

// Process runs the required stages for a recording and returns the outcome.
// A recording that already completed returns its stored artifacts without
// touching any external service. A feedback failure after transcription
// leaves the recording re-invokable rather than failed.
func (p *Pipeline) Process(ctx context.Context, recordingID, scenario string) Outcome {
	ctx = services.WithRecordingID(ctx, recordingID)
	log := p.logger.With(logging.String(logging.FieldRecordingID, recordingID))

	rec, err := p.store.GetByID(ctx, recordingID)
	if err != nil {
		return Outcome{Err: fmt.Errorf("pipeline process: load recording: %w", err)}
	}
	if rec == nil {
		return Outcome{Err: services.Wrap(services.ErrNotFound, "pipeline", "process", recordingID, nil)}
	}
	if scenario == "" {
		scenario = rec.Scenario
	}

	switch rec.Status {
	case store.StatusComplete:
		return p.storedOutcome(ctx, rec)
	case store.StatusFailed:
		return Outcome{Err: services.Wrap(services.ErrValidation, "pipeline", "process",
			fmt.Sprintf("recording already failed: %s", rec.ErrorMessage), nil)}
	case store.StatusUploading:
		return Outcome{Err: services.Wrap(services.ErrNotReady, "pipeline", "process", "media not yet attached", nil)}
	}

	transcript, err := p.resolveTranscript(ctx, log, rec)
	if err != nil {
		return Outcome{Err: err}
	}

	report, err := p.analyze(ctx, log, rec, scenario, transcript)
	if err != nil {
		return Outcome{Transcript: transcript, Err: err}
	}
	return Outcome{Transcript: transcript, Report: report}
}

// storedOutcome loads the persisted artifacts for a completed recording.
func (p *Pipeline) storedOutcome(ctx context.Context, rec *store.Recording) Outcome {
	report, err := p.store.GetReport(ctx, rec.ID)
	if err != nil {
		return Outcome{Err: fmt.Errorf("pipeline process: load stored report: %w", err)}
	}
	if report == nil {
		return Outcome{Err: fmt.Errorf("pipeline process: recording %s is complete but has no stored report", rec.ID)}
	}
	transcript, err := p.store.GetTranscript(ctx, rec.ID)
	if err != nil {
		return Outcome{Err: fmt.Errorf("pipeline process: load stored transcript: %w", err)}
	}
	return Outcome{Transcript: transcript, Report: report}
}

func (p *Pipeline) resolveTranscript(ctx context.Context, log *slog.Logger, rec *store.Recording) (*store.Transcript, error) {
	existing, err := p.store.GetTranscript(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("pipeline transcribe: load transcript: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	ctx = services.WithStage(ctx, "transcribing")
	if err := p.store.SetStatus(ctx, rec.ID, store.StatusTranscribing); err != nil {
		return nil, fmt.Errorf("pipeline transcribe: set status: %w", err)
	}
	log.Info("transcribing recording", logging.String(logging.FieldStage, "transcribing"))

	reader, err := p.media.Open(rec.MediaLocator)
	if err != nil {
		p.fail(ctx, log, rec, fmt.Sprintf("open media: %v", err))
		return nil, fmt.Errorf("pipeline transcribe: open media: %w", err)
	}
	transcript, err := p.speech.Transcribe(ctx, rec.ID, reader, rec.MediaLocator, rec.ContentType)
	reader.Close()
	if err != nil {
		p.fail(ctx, log, rec, fmt.Sprintf("transcription failed: %v", err))
		return nil, fmt.Errorf("pipeline transcribe: %w", err)
	}

	// The declared duration wins when the client supplied one; otherwise the
	// word timeline is the source of truth. Either way the canonical value is
	// written back so every later consumer agrees.
	canonical := rec.DeclaredDuration
	if canonical <= 0 {
		canonical = transcript.LastWordEnd()
	}
	if canonical > 0 && canonical != transcript.Duration {
		transcript.Duration = canonical
		transcript.Metrics = speech.ComputeMetrics(transcript.Words, canonical)
	}

	if err := p.store.SaveTranscript(ctx, transcript); err != nil {
		p.fail(ctx, log, rec, fmt.Sprintf("persist transcript: %v", err))
		return nil, fmt.Errorf("pipeline transcribe: save transcript: %w", err)
	}
	if canonical > 0 {
		if err := p.store.SetDuration(ctx, rec.ID, canonical); err != nil {
			return nil, fmt.Errorf("pipeline transcribe: write duration: %w", err)
		}
		rec.Duration = canonical
	}
	return transcript, nil
}

func (p *Pipeline) analyze(ctx context.Context, log *slog.Logger, rec *store.Recording, scenario string, transcript *store.Transcript) (*store.FeedbackReport, error) {
	ctx = services.WithStage(ctx, "analyzing")
	if err := p.store.SetStatus(ctx, rec.ID, store.StatusAnalyzing); err != nil {
		return nil, fmt.Errorf("pipeline analyze: set status: %w", err)
	}
	log.Info("analyzing recording", logging.String(logging.FieldStage, "analyzing"))

	input := feedback.AnalysisInput{
		RecordingID:    rec.ID,
		Question:       rec.Question,
		Scenario:       scenario,
		TranscriptText: transcript.Text,
		Words:          transcript.Words,
		Metrics:        transcript.Metrics,
		Duration:       p.canonicalDuration(rec, transcript),
		MinDuration:    rec.MinDuration,
		MaxDuration:    rec.MaxDuration,
	}
	if rec.ReferenceRef != "" {
		doc, err := p.store.GetReferenceDocument(ctx, rec.ReferenceRef)
		if err != nil {
			return nil, fmt.Errorf("pipeline analyze: load reference: %w", err)
		}
		input.Reference = doc
	}
	biometrics, err := p.store.GetBiometrics(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("pipeline analyze: load biometrics: %w", err)
	}
	input.Biometrics = biometrics

	report, err := p.feedback.Analyze(ctx, input)
	if err != nil {
		// The transcript survives; park the recording so a later invocation
		// can retry analysis instead of failing it.
		if _, revertErr := p.store.Transition(ctx, rec.ID, store.StatusAnalyzing, store.StatusProcessing); revertErr != nil {
			log.Error("revert status after analysis failure", logging.Error(revertErr))
		}
		return nil, services.Wrap(services.ErrNotReady, "pipeline", "analyze", "feedback unavailable, retry later", err)
	}

	if err := p.store.SaveReport(ctx, report); err != nil {
		p.fail(ctx, log, rec, fmt.Sprintf("persist report: %v", err))
		return nil, fmt.Errorf("pipeline analyze: save report: %w", err)
	}
	if _, err := p.store.Transition(ctx, rec.ID, store.StatusAnalyzing, store.StatusComplete); err != nil {
		return nil, fmt.Errorf("pipeline analyze: finalize status: %w", err)
	}
	log.Info("recording complete", logging.Int("overall", report.Overall))
	if p.notifier != nil {
		p.notifier.RecordingComplete(ctx, rec, report)
	}
	return report, nil
}

// ProcessBiometrics runs the advisory biometric stage. It never fails a
// recording: extraction errors revert the status and are returned to the
// caller for logging only.
func (p *Pipeline) ProcessBiometrics(ctx context.Context, recordingID string) error {
	ctx = services.WithRecordingID(ctx, recordingID)
	ctx = services.WithStage(ctx, "extracting_biometrics")
	log := p.logger.With(logging.String(logging.FieldRecordingID, recordingID))

	if p.biometrics == nil || !p.biometrics.Enabled() {
		return services.Wrap(services.ErrConfiguration, "pipeline", "biometrics", "extraction not configured", nil)
	}
	rec, err := p.store.GetByID(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("pipeline biometrics: load recording: %w", err)
	}
	if rec == nil {
		return services.Wrap(services.ErrNotFound, "pipeline", "biometrics", recordingID, nil)
	}
	if rec.MediaLocator == "" {
		return services.Wrap(services.ErrNotReady, "pipeline", "biometrics", "media not yet attached", nil)
	}
	if store.IsTerminal(rec.Status) {
		return services.Wrap(services.ErrValidation, "pipeline", "biometrics", "recording already finished", nil)
	}

	// Claim the status only when the record is idle; the stage still runs
	// when transcription has moved on, it just leaves the status alone.
	claimed, err := p.store.Transition(ctx, rec.ID, store.StatusProcessing, store.StatusExtracting)
	if err != nil {
		return fmt.Errorf("pipeline biometrics: set status: %w", err)
	}
	release := func() {
		if !claimed {
			return
		}
		// The guard means a transcription transition that happened meanwhile
		// wins; the revert only lands on an untouched record.
		if _, err := p.store.Transition(ctx, rec.ID, store.StatusExtracting, store.StatusProcessing); err != nil {
			log.Error("revert biometric status", logging.Error(err))
		}
	}

	url := rec.MediaLocator
	if p.mediaURL != nil {
		url = p.mediaURL(rec.MediaLocator)
	}
	artifact, err := p.biometrics.Extract(ctx, rec.ID, url)
	if err != nil {
		release()
		log.Warn("biometric extraction failed", logging.Error(err))
		return fmt.Errorf("pipeline biometrics: %w", err)
	}
	if err := p.store.SaveBiometrics(ctx, artifact); err != nil {
		release()
		return fmt.Errorf("pipeline biometrics: save artifact: %w", err)
	}
	release()
	log.Info("biometric artifact stored", logging.Int("samples", len(artifact.Timestamps)))
	return nil
}

func (p *Pipeline) canonicalDuration(rec *store.Recording, transcript *store.Transcript) float64 {
	if rec.Duration > 0 {
		return rec.Duration
	}
	if rec.DeclaredDuration > 0 {
		return rec.DeclaredDuration
	}
	return transcript.LastWordEnd()
}

// fail marks the recording FAILED and notifies. The status write is
// best-effort: a failure to record the failure is logged, not propagated.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, rec *store.Recording, reason string) {
	if err := p.store.MarkFailed(ctx, rec.ID, reason); err != nil {
		log.Error("mark recording failed", logging.Error(err))
	}
	log.Error("recording failed", logging.String("reason", reason))
	if p.notifier != nil {
		p.notifier.RecordingFailed(ctx, rec, reason)
	}
}
