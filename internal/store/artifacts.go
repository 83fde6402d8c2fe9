package store

import "time"

// Word is a single transcript token with provider-supplied timing.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// SpeechMetrics are derived delivery measurements computed from the word
// timeline.
type SpeechMetrics struct {
	WordsPerMinute float64 `json:"words_per_minute"`
	FillerCount    int     `json:"filler_count"`
	PauseCount     int     `json:"pause_count"`
	LongestPause   float64 `json:"longest_pause"`
	AveragePause   float64 `json:"average_pause"`
	TotalPause     float64 `json:"total_pause"`
}

// Transcript is the persisted speech-to-text artifact for a recording.
type Transcript struct {
	RecordingID string        `json:"recording_id"`
	Text        string        `json:"text"`
	Words       []Word        `json:"words"`
	Duration    float64       `json:"duration"`
	Metrics     SpeechMetrics `json:"metrics"`
	CreatedAt   time.Time     `json:"created_at"`
}

// LastWordEnd returns the end time of the final word, or zero when the
// transcript carries no timing.
func (t Transcript) LastWordEnd() float64 {
	if len(t.Words) == 0 {
		return 0
	}
	return t.Words[len(t.Words)-1].End
}

// SectorScore is one scored dimension of a feedback report.
type SectorScore struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale,omitempty"`
}

// SectorScores holds the six scored dimensions.
type SectorScores struct {
	Tone          SectorScore `json:"tone"`
	Fluency       SectorScore `json:"fluency"`
	Vocabulary    SectorScore `json:"vocabulary"`
	Pronunciation SectorScore `json:"pronunciation"`
	Engagement    SectorScore `json:"engagement"`
	Confidence    SectorScore `json:"confidence"`
}

// List returns the sector scores in canonical order.
func (s SectorScores) List() []SectorScore {
	return []SectorScore{s.Tone, s.Fluency, s.Vocabulary, s.Pronunciation, s.Engagement, s.Confidence}
}

// TimedScore is one sample of a score-over-time series.
type TimedScore struct {
	Time  float64 `json:"time"`
	Score int     `json:"score"`
}

// Duration conformance assessments.
const (
	DurationTooShort = "too_short"
	DurationTooLong  = "too_long"
)

// DurationFeedback flags a recording that fell outside its allowed length.
// GapSeconds is always positive: seconds missing when too short, seconds over
// when too long.
type DurationFeedback struct {
	Assessment string  `json:"assessment"`
	GapSeconds float64 `json:"gap_seconds"`
	Text       string  `json:"text,omitempty"`
}

// Recommendation categories and priorities accepted in feedback reports.
const (
	CategoryPhysical = "physical"
	CategorySpeech   = "speech"
	CategoryContent  = "content"
	CategoryGeneral  = "general"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recommendation is one prioritized improvement suggestion.
type Recommendation struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
}

// FeedbackReport is the persisted analysis artifact for a recording.
type FeedbackReport struct {
	RecordingID        string            `json:"recording_id"`
	Model              string            `json:"model"`
	Overall            int               `json:"overall"`
	Sectors            SectorScores      `json:"sectors"`
	Summary            string            `json:"summary,omitempty"`
	ConfidenceSeries   []TimedScore      `json:"confidence_series,omitempty"`
	EngagementSeries   []TimedScore      `json:"engagement_series,omitempty"`
	DurationFeedback   *DurationFeedback `json:"duration_feedback,omitempty"`
	ReferenceAdherence string            `json:"reference_adherence,omitempty"`
	Recommendations    []Recommendation  `json:"recommendations,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// Expression is one facial-expression observation on the shared timestamp
// axis. Confidence is the provider's score for the label, zero when the
// provider reports none.
type Expression struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence,omitempty"`
}

// BiometricArtifact holds the aligned physiological series extracted from a
// recording. All series share the Timestamps axis.
type BiometricArtifact struct {
	RecordingID string       `json:"recording_id"`
	Timestamps  []float64    `json:"timestamps"`
	HeartRate   []float64    `json:"heart_rate"`
	Breathing   []float64    `json:"breathing"`
	Expressions []Expression `json:"expressions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Aligned reports whether every present series matches the timestamp axis
// length. Providers may omit a series entirely.
func (b BiometricArtifact) Aligned() bool {
	n := len(b.Timestamps)
	fits := func(m int) bool { return m == 0 || m == n }
	return fits(len(b.HeartRate)) && fits(len(b.Breathing)) && fits(len(b.Expressions))
}

// ReferenceDocument is user-supplied source material a recording can be
// scored against.
type ReferenceDocument struct {
	ID        string    `json:"id"`
	UserRef   string    `json:"user_ref"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
