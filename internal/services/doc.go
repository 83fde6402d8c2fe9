// Package services holds shared plumbing for the external stage clients:
// error classification sentinels, context annotations for structured
// logging, and the retry/backoff policy every provider call runs under.
package services
