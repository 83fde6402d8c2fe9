// Package store persists recordings and their pipeline artifacts in SQLite.
//
// The schema holds one row per recording plus one row per artifact kind
// (transcript, feedback report, biometric series) keyed by recording id.
// Status changes race between the upload path, the main pipeline, and the
// out-of-band biometric stage, so transitions that must not clobber later
// stages go through Transition, a guarded compare-and-swap on the status
// column.
package store
