package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"podium/internal/store"
)

// AnalysisInput carries everything the feedback stage knows about a
// recording at analysis time.
type AnalysisInput struct {
	RecordingID    string
	Question       string
	Scenario       string
	TranscriptText string
	Words          []store.Word
	Metrics        store.SpeechMetrics
	Duration       float64
	MinDuration    float64
	MaxDuration    float64
	Reference      *store.ReferenceDocument
	Biometrics     *store.BiometricArtifact
}

// Analyze scores a transcribed recording and returns the normalized report.
func (c *Client) Analyze(ctx context.Context, input AnalysisInput) (*store.FeedbackReport, error) {
	if strings.TrimSpace(input.TranscriptText) == "" {
		return nil, fmt.Errorf("feedback analyze: transcript text required")
	}

	content, model, err := c.CompleteJSON(ctx, AnalysisSystemPrompt, buildAnalysisPrompt(input))
	if err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := DecodeModelJSON(content, &payload); err != nil {
		return nil, err
	}

	report := normalizeReport(payload)
	report.RecordingID = input.RecordingID
	report.Model = model
	report.DurationFeedback = durationFeedback(input.Duration, input.MinDuration, input.MaxDuration)
	if input.Reference != nil && report.ReferenceAdherence == "" {
		report.ReferenceAdherence = adherenceFromRecommendations(report.Recommendations)
	}
	return report, nil
}

// reportKeyAliases folds the key spellings observed from providers onto
// canonical field names. Unknown keys are dropped.
var reportKeyAliases = map[string]string{
	"overall":             "overall",
	"overallscore":        "overall",
	"overall_score":       "overall",
	"sectors":             "sectors",
	"sectorscores":        "sectors",
	"sector_scores":       "sectors",
	"summary":             "summary",
	"confidenceovertime":  "confidence_series",
	"confidenceseries":    "confidence_series",
	"confidence_series":   "confidence_series",
	"engagementovertime":  "engagement_series",
	"engagementseries":    "engagement_series",
	"engagement_series":   "engagement_series",
	"referenceadherence":  "reference_adherence",
	"reference_adherence": "reference_adherence",
	"recommendations":     "recommendations",
}

var sectorNames = []string{"tone", "fluency", "vocabulary", "pronunciation", "engagement", "confidence"}

type rawSector struct {
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
	Reason    string   `json:"reason"`
	Feedback  string   `json:"feedback"`
}

type rawSample struct {
	Time      *float64 `json:"time"`
	Timestamp *float64 `json:"timestamp"`
	Score     *float64 `json:"score"`
	Value     *float64 `json:"value"`
}

type rawRecommendation struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	Description string `json:"description"`
	Detail      string `json:"detail"`
	Priority    string `json:"priority"`
}

func normalizeReport(payload map[string]json.RawMessage) *store.FeedbackReport {
	canonical := make(map[string]json.RawMessage, len(payload))
	for key, value := range payload {
		folded := strings.ToLower(strings.TrimSpace(key))
		if name, ok := reportKeyAliases[folded]; ok {
			if _, exists := canonical[name]; !exists {
				canonical[name] = value
			}
		}
	}

	report := &store.FeedbackReport{}

	if raw, ok := canonical["summary"]; ok {
		var summary string
		if json.Unmarshal(raw, &summary) == nil {
			report.Summary = strings.TrimSpace(summary)
		}
	}
	if raw, ok := canonical["reference_adherence"]; ok {
		var adherence string
		if json.Unmarshal(raw, &adherence) == nil {
			report.ReferenceAdherence = strings.TrimSpace(adherence)
		}
	}

	sectorsPresent := false
	if raw, ok := canonical["sectors"]; ok {
		var sectors map[string]rawSector
		if json.Unmarshal(raw, &sectors) == nil && len(sectors) > 0 {
			folded := make(map[string]rawSector, len(sectors))
			for name, sector := range sectors {
				folded[strings.ToLower(strings.TrimSpace(name))] = sector
			}
			scores := make([]store.SectorScore, len(sectorNames))
			for i, name := range sectorNames {
				sector := folded[name]
				score := store.SectorScore{Rationale: firstNonEmpty(sector.Rationale, sector.Reason, sector.Feedback)}
				if sector.Score != nil {
					score.Score = clampScore(*sector.Score)
					sectorsPresent = true
				}
				scores[i] = score
			}
			report.Sectors = store.SectorScores{
				Tone:          scores[0],
				Fluency:       scores[1],
				Vocabulary:    scores[2],
				Pronunciation: scores[3],
				Engagement:    scores[4],
				Confidence:    scores[5],
			}
		}
	}

	// The overall score is derived, never trusted: with sectors present it is
	// the rounded mean of the six sector scores.
	if sectorsPresent {
		report.Overall = overallFromSectors(report.Sectors)
	} else if raw, ok := canonical["overall"]; ok {
		var overall float64
		if json.Unmarshal(raw, &overall) == nil {
			report.Overall = clampScore(overall)
		}
	}

	report.ConfidenceSeries = normalizeSeries(canonical["confidence_series"])
	report.EngagementSeries = normalizeSeries(canonical["engagement_series"])
	report.Recommendations = normalizeRecommendations(canonical["recommendations"])

	return report
}

func overallFromSectors(sectors store.SectorScores) int {
	scores := sectors.List()
	var sum float64
	for _, sector := range scores {
		sum += float64(sector.Score)
	}
	return int(math.Round(sum / float64(len(scores))))
}

func normalizeSeries(raw json.RawMessage) []store.TimedScore {
	if len(raw) == 0 {
		return nil
	}
	var samples []rawSample
	if json.Unmarshal(raw, &samples) != nil {
		return nil
	}
	series := make([]store.TimedScore, 0, len(samples))
	for _, sample := range samples {
		var at float64
		switch {
		case sample.Time != nil:
			at = *sample.Time
		case sample.Timestamp != nil:
			at = *sample.Timestamp
		default:
			continue
		}
		var score float64
		switch {
		case sample.Score != nil:
			score = *sample.Score
		case sample.Value != nil:
			score = *sample.Value
		default:
			continue
		}
		series = append(series, store.TimedScore{Time: at, Score: clampScore(score)})
	}
	if len(series) == 0 {
		return nil
	}
	return series
}

func normalizeRecommendations(raw json.RawMessage) []store.Recommendation {
	if len(raw) == 0 {
		return nil
	}
	var recs []rawRecommendation
	if json.Unmarshal(raw, &recs) != nil {
		return nil
	}
	out := make([]store.Recommendation, 0, len(recs))
	for _, rec := range recs {
		title := firstNonEmpty(rec.Title, rec.Text)
		if title == "" {
			continue
		}
		out = append(out, store.Recommendation{
			Category:    normalizeCategory(rec.Category),
			Title:       title,
			Description: firstNonEmpty(rec.Description, rec.Detail),
			Priority:    normalizePriority(rec.Priority),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case store.CategoryPhysical:
		return store.CategoryPhysical
	case store.CategorySpeech:
		return store.CategorySpeech
	case store.CategoryContent:
		return store.CategoryContent
	default:
		return store.CategoryGeneral
	}
}

func normalizePriority(priority string) string {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case store.PriorityHigh:
		return store.PriorityHigh
	case store.PriorityLow:
		return store.PriorityLow
	default:
		return store.PriorityMedium
	}
}

func clampScore(value float64) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return int(math.Round(value))
}

// durationFeedback is computed locally rather than trusted from the model:
// it only exists when the recording fell outside its allowed range.
func durationFeedback(duration, minDuration, maxDuration float64) *store.DurationFeedback {
	if duration <= 0 {
		return nil
	}
	if minDuration > 0 && duration < minDuration {
		gap := minDuration - duration
		return &store.DurationFeedback{
			Assessment: store.DurationTooShort,
			GapSeconds: gap,
			Text:       fmt.Sprintf("The recording ran %.0f seconds short of the %.0f second minimum.", gap, minDuration),
		}
	}
	if maxDuration > 0 && duration > maxDuration {
		gap := duration - maxDuration
		return &store.DurationFeedback{
			Assessment: store.DurationTooLong,
			GapSeconds: gap,
			Text:       fmt.Sprintf("The recording ran %.0f seconds over the %.0f second maximum.", gap, maxDuration),
		}
	}
	return nil
}

// adherenceFromRecommendations derives a fallback adherence paragraph from
// content-category recommendations when the model omitted the field.
func adherenceFromRecommendations(recs []store.Recommendation) string {
	var parts []string
	for _, rec := range recs {
		if rec.Category != store.CategoryContent {
			continue
		}
		if rec.Description != "" {
			parts = append(parts, rec.Description)
		} else {
			parts = append(parts, rec.Title)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "Content coverage notes: " + strings.Join(parts, " ")
}
