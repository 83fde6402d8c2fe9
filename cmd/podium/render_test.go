package main

import (
	"bytes"
	"strings"
	"testing"

	"podium/internal/store"
)

func TestStatusLabel(t *testing.T) {
	cases := map[string]string{
		"processing":            "Processing",
		"extracting_biometrics": "Extracting Biometrics",
		"complete":              "Complete",
		"":                      "Unknown",
	}
	for input, want := range cases {
		if got := statusLabel(input); got != want {
			t.Errorf("statusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestHeaderLinesWithoutColor(t *testing.T) {
	lines := headerLines("Session abc", false)
	if len(lines) != 2 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "Session abc" {
		t.Fatalf("title = %q", lines[0])
	}
	if lines[1] != strings.Repeat("-", len("Session abc")) {
		t.Fatalf("rule = %q", lines[1])
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(0); got != "-" {
		t.Fatalf("zero = %q", got)
	}
	if got := formatSeconds(92.25); got != "92.3s" {
		t.Fatalf("formatted = %q", got)
	}
}

func TestRenderReportIncludesSectorsAndRecommendations(t *testing.T) {
	var buf bytes.Buffer
	report := &store.FeedbackReport{
		Overall: 81,
		Summary: "Clear and steady delivery.",
		Sectors: store.SectorScores{
			Tone:    store.SectorScore{Score: 80, Rationale: "warm"},
			Fluency: store.SectorScore{Score: 82},
		},
		DurationFeedback: &store.DurationFeedback{
			Assessment: store.DurationTooShort,
			GapSeconds: 12,
		},
		Recommendations: []store.Recommendation{
			{Category: store.CategorySpeech, Title: "Slow down", Priority: store.PriorityMedium},
		},
	}
	renderReport(&buf, report)
	out := buf.String()
	for _, want := range []string{"overall 81/100", "Clear and steady delivery.", "Tone", "warm", "Too Short", "Slow down"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Score"},
		[][]string{{"rec-1", "70"}, {"rec-2", "85"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	if !strings.Contains(out, "rec-1") || !strings.Contains(out, "85") {
		t.Fatalf("table output:\n%s", out)
	}
}
