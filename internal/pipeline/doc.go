// Package pipeline orchestrates recording analysis: transcription and
// feedback generation in sequence, biometric extraction out of band.
//
// The required path is transcription then analysis; a recording is COMPLETE
// only once its report row is durably stored. Transcription failures are
// fatal for the recording. Analysis failures after a transcript exists park
// the recording back in PROCESSING so a later invocation retries analysis
// without re-transcribing. Biometric extraction is advisory and its failure
// never blocks completion.
package pipeline
