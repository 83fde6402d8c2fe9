package feedback

import (
	"fmt"
	"strings"

	"podium/internal/store"
)

// maxReferenceChars bounds the reference excerpt included in the prompt.
const maxReferenceChars = 5000

// AnalysisSystemPrompt captures the instructions sent to the configured model
// when scoring a recording. Update this text centrally so every call stays in
// sync.
const AnalysisSystemPrompt = `You are an experienced communication coach scoring a recorded spoken performance.

You receive the transcript of the recording, delivery metrics computed from its word timeline, and optionally physiological signals and reference material the speaker should cover.

Score each of these six sectors from 0 to 100 with a short rationale:

- "tone": warmth, appropriateness, and variation of tone.
- "fluency": smoothness of delivery, filler words, pauses.
- "vocabulary": word choice, precision, range.
- "pronunciation": clarity and articulation.
- "engagement": how compelling the delivery is for a listener.
- "confidence": how assured the speaker sounds.

Also produce:

- "summary": two or three sentences on the overall performance.
- "confidenceOverTime" and "engagementOverTime": arrays of {"time": seconds, "score": 0-100} samples across the recording, when the transcript is long enough to judge.
- "referenceAdherence": one paragraph on how well the content covered the reference material, only when reference material is provided.
- "recommendations": up to five entries of {"category": "physical"|"speech"|"content"|"general", "title": short, "description": concrete advice, "priority": "high"|"medium"|"low"}.

You must respond ONLY with a JSON object like:
{"sectors": {"tone": {"score": 80, "rationale": "..."}, ...}, "summary": "...", "confidenceOverTime": [...], "engagementOverTime": [...], "referenceAdherence": "...", "recommendations": [...]}`

// QuestionSystemPrompt instructs the model to generate behavioral interview
// questions.
const QuestionSystemPrompt = `You generate behavioral interview questions.

Given a role or topic and a count, produce exactly that many open-ended behavioral questions a candidate could answer in one to three minutes each. Questions must be self-contained and avoid yes/no phrasing.

You must respond ONLY with a JSON object like: {"questions": ["...", "..."]}`

var scenarioDescriptors = map[string]string{
	"interview":    "a job interview answer",
	"presentation": "a prepared presentation",
	"pitch":        "a business pitch",
	"speech":       "a public speech",
}

func scenarioDescriptor(scenario string) string {
	if desc, ok := scenarioDescriptors[strings.ToLower(strings.TrimSpace(scenario))]; ok {
		return desc
	}
	return "a spoken performance"
}

func buildAnalysisPrompt(input AnalysisInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The recording is %s.\n", scenarioDescriptor(input.Scenario))
	if question := strings.TrimSpace(input.Question); question != "" {
		fmt.Fprintf(&b, "The speaker was responding to: %q\n", question)
	}
	if input.Duration > 0 {
		fmt.Fprintf(&b, "Recording length: %.0f seconds.\n", input.Duration)
	}

	b.WriteString("\nTranscript:\n")
	b.WriteString(strings.TrimSpace(input.TranscriptText))
	b.WriteString("\n")

	m := input.Metrics
	b.WriteString("\nDelivery metrics:\n")
	fmt.Fprintf(&b, "- words per minute: %.1f\n", m.WordsPerMinute)
	fmt.Fprintf(&b, "- filler words: %d\n", m.FillerCount)
	fmt.Fprintf(&b, "- pauses: %d (longest %.2fs, average %.2fs)\n", m.PauseCount, m.LongestPause, m.AveragePause)

	if input.Biometrics != nil && len(input.Biometrics.Timestamps) > 0 {
		b.WriteString("\nPhysiological signals (sampled):\n")
		fmt.Fprintf(&b, "- average heart rate: %.1f bpm\n", mean(input.Biometrics.HeartRate))
		fmt.Fprintf(&b, "- average breathing rate: %.1f breaths/min\n", mean(input.Biometrics.Breathing))
		fmt.Fprintf(&b, "- dominant expression: %s\n", dominantExpression(input.Biometrics.Expressions))
	}

	if excerpt := referenceExcerpt(input.Reference); excerpt != "" {
		b.WriteString("\nReference material the speaker should cover:\n")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}

	return b.String()
}

func buildQuestionPrompt(topic string, count int) string {
	return fmt.Sprintf("Role or topic: %s\nCount: %d", strings.TrimSpace(topic), count)
}

func referenceExcerpt(doc *store.ReferenceDocument) string {
	if doc == nil {
		return ""
	}
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return ""
	}
	runes := []rune(content)
	if len(runes) > maxReferenceChars {
		content = string(runes[:maxReferenceChars]) + "..."
	}
	return content
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func dominantExpression(expressions []store.Expression) string {
	if len(expressions) == 0 {
		return "unknown"
	}
	counts := make(map[string]int, 8)
	best := expressions[0].Label
	for _, expr := range expressions {
		counts[expr.Label]++
		if counts[expr.Label] > counts[best] {
			best = expr.Label
		}
	}
	return best
}
