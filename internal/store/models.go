package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a recording.
type Status string

const (
	StatusUploading    Status = "uploading"
	StatusProcessing   Status = "processing"
	StatusExtracting   Status = "extracting_biometrics"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusUploading,
	StatusProcessing,
	StatusExtracting,
	StatusTranscribing,
	StatusAnalyzing,
	StatusComplete,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusProcessing:   {},
	StatusExtracting:   {},
	StatusTranscribing: {},
	StatusAnalyzing:    {},
}

// Recording represents a persisted recording row.
type Recording struct {
	ID            string
	UserRef       string
	SessionToken  string
	Question      string
	Scenario      string
	MediaLocator  string
	ContentType   string
	SizeBytes     int64
	ReferenceRef  string
	ReferenceType string
	// DeclaredDuration is the client-reported length in seconds; Duration is
	// the canonical value after post-hoc correction from the transcript.
	DeclaredDuration float64
	Duration         float64
	MinDuration      float64
	MaxDuration      float64
	Status           Status
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HealthSummary describes aggregated recording counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Uploading  int
	Processing int
	Complete   int
	Failed     int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func IsTerminal(status Status) bool {
	return status == StatusComplete || status == StatusFailed
}

// IsProcessingStatus reports whether a status reflects an in-flight pipeline stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsProcessing returns true when the recording has an in-flight pipeline stage.
func (r Recording) IsProcessing() bool {
	return IsProcessingStatus(r.Status)
}

// SetFailed marks the recording as failed with the given error message.
func (r *Recording) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
}
