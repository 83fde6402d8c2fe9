// Package logging wires slog handlers for console and JSON output.
//
// Console output is a compact single-line format intended for interactive
// use; JSON output targets log aggregation. Both honor per-component
// loggers via NewComponentLogger and context-derived fields via
// WithContext.
package logging
