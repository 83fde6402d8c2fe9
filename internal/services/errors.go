package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks failures caused by missing or invalid setup
	// (absent credentials, unreachable required config). Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures worth retrying: rate limits, 5xx responses,
	// timeouts.
	ErrTransient = errors.New("transient failure")
	// ErrMalformed marks provider responses whose structured payload could not
	// be extracted even after retries.
	ErrMalformed = errors.New("malformed response")
	// ErrNotFound marks lookups for records or backends that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks rejected inputs (bad media type, oversize upload).
	ErrValidation = errors.New("validation error")
	// ErrNotReady marks a valid intermediate state: the pipeline has not
	// produced the requested artifact yet and the caller should ask again.
	ErrNotReady = errors.New("not ready")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsConfiguration reports whether err carries the configuration marker.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsTransient reports whether err carries the transient marker.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsMalformed reports whether err carries the malformed-response marker.
func IsMalformed(err error) bool { return errors.Is(err, ErrMalformed) }

// IsNotFound reports whether err carries the not-found marker.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err carries the validation marker.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotReady reports whether err carries the not-ready marker.
func IsNotReady(err error) bool { return errors.Is(err, ErrNotReady) }

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
