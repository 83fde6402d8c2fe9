package speech

import (
	"strings"

	"podium/internal/store"
)

// pauseThreshold is the minimum inter-word gap, in seconds, counted as a
// deliberate pause rather than ordinary articulation spacing.
const pauseThreshold = 0.3

// fillerWords are single-token hesitation markers. "you know" is matched as
// a bigram separately.
var fillerWords = map[string]struct{}{
	"um":        {},
	"uh":        {},
	"like":      {},
	"so":        {},
	"well":      {},
	"actually":  {},
	"basically": {},
}

// ComputeMetrics derives delivery metrics from the word timeline. Duration is
// the canonical recording length in seconds; a non-positive duration yields a
// zero speaking rate.
func ComputeMetrics(words []store.Word, duration float64) store.SpeechMetrics {
	var m store.SpeechMetrics
	if len(words) == 0 {
		return m
	}

	if duration > 0 {
		m.WordsPerMinute = float64(len(words)) / duration * 60
	}

	for i, word := range words {
		token := normalizeToken(word.Text)
		if _, ok := fillerWords[token]; ok {
			m.FillerCount++
		} else if token == "you" && i+1 < len(words) && normalizeToken(words[i+1].Text) == "know" {
			m.FillerCount++
		}

		if i == 0 {
			continue
		}
		gap := word.Start - words[i-1].End
		if gap > pauseThreshold {
			m.PauseCount++
			m.TotalPause += gap
			if gap > m.LongestPause {
				m.LongestPause = gap
			}
		}
	}
	if m.PauseCount > 0 {
		m.AveragePause = m.TotalPause / float64(m.PauseCount)
	}
	return m
}

func normalizeToken(text string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".,!?;:\"'")
}
