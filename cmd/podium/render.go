package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podium/internal/server"
	"podium/internal/store"
)

const (
	ansiBlue  = "\x1b[34m"
	ansiReset = "\x1b[0m"
)

var titleCaser = cases.Title(language.Und)

// statusLabel turns a wire status into a display label, e.g.
// "extracting_biometrics" -> "Extracting Biometrics".
func statusLabel(status string) string {
	if status == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func headerLines(title string, colorize bool) []string {
	rule := strings.Repeat("-", len(title))
	if colorize {
		title = ansiBlue + title + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{title, rule}
}

func printHeader(out io.Writer, title string) {
	for _, line := range headerLines(title, shouldColorize(out)) {
		fmt.Fprintln(out, line)
	}
}

func formatSeconds(value float64) string {
	if value <= 0 {
		return "-"
	}
	return strconv.FormatFloat(value, 'f', 1, 64) + "s"
}

func recordingRow(view server.RecordingView) []string {
	return []string{
		view.ID,
		statusLabel(view.Status),
		view.Question,
		formatSeconds(view.Duration),
		view.CreatedAt.Local().Format("2006-01-02 15:04"),
	}
}

var recordingHeaders = []string{"ID", "Status", "Question", "Duration", "Created"}

func renderRecordings(out io.Writer, views []server.RecordingView) {
	rows := make([][]string, len(views))
	for i, view := range views {
		rows[i] = recordingRow(view)
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
	fmt.Fprintln(out, renderTable(recordingHeaders, rows, aligns))
}

func renderReport(out io.Writer, report *store.FeedbackReport) {
	if report == nil {
		return
	}
	printHeader(out, fmt.Sprintf("Feedback (overall %d/100)", report.Overall))
	if report.Summary != "" {
		fmt.Fprintln(out, report.Summary)
		fmt.Fprintln(out)
	}

	sectors := report.Sectors
	rows := [][]string{
		{"Tone", strconv.Itoa(sectors.Tone.Score), sectors.Tone.Rationale},
		{"Fluency", strconv.Itoa(sectors.Fluency.Score), sectors.Fluency.Rationale},
		{"Vocabulary", strconv.Itoa(sectors.Vocabulary.Score), sectors.Vocabulary.Rationale},
		{"Pronunciation", strconv.Itoa(sectors.Pronunciation.Score), sectors.Pronunciation.Rationale},
		{"Engagement", strconv.Itoa(sectors.Engagement.Score), sectors.Engagement.Rationale},
		{"Confidence", strconv.Itoa(sectors.Confidence.Score), sectors.Confidence.Rationale},
	}
	fmt.Fprintln(out, renderTable([]string{"Sector", "Score", "Notes"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))

	if fb := report.DurationFeedback; fb != nil {
		fmt.Fprintf(out, "\nDuration: %s by %.0f seconds\n", statusLabel(fb.Assessment), fb.GapSeconds)
		if fb.Text != "" {
			fmt.Fprintln(out, fb.Text)
		}
	}
	if report.ReferenceAdherence != "" {
		fmt.Fprintln(out)
		printHeader(out, "Reference Adherence")
		fmt.Fprintln(out, report.ReferenceAdherence)
	}
	if len(report.Recommendations) > 0 {
		fmt.Fprintln(out)
		printHeader(out, "Recommendations")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(out, "- [%s/%s] %s", rec.Category, rec.Priority, rec.Title)
			if rec.Description != "" {
				fmt.Fprintf(out, ": %s", rec.Description)
			}
			fmt.Fprintln(out)
		}
	}
}

func renderTranscriptSummary(out io.Writer, transcript *store.Transcript) {
	if transcript == nil {
		return
	}
	metrics := transcript.Metrics
	fmt.Fprintf(out, "Transcript: %d words over %s (%.0f wpm, %d fillers, %d pauses)\n",
		len(transcript.Words), formatSeconds(transcript.Duration),
		metrics.WordsPerMinute, metrics.FillerCount, metrics.PauseCount)
}
