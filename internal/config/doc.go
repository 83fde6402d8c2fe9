// Package config loads, normalizes, and validates Podium configuration from
// TOML files with environment overrides for credentials.
package config
