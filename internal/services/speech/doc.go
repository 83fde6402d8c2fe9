// Package speech transcribes recorded audio through an external
// speech-to-text API and computes delivery metrics (speaking rate, filler
// words, pauses) from the returned word timeline.
//
// Transcription is the load-bearing stage of the pipeline: without a
// transcript there is nothing to analyze, so unlike biometric extraction its
// failures are fatal for the recording.
package speech
