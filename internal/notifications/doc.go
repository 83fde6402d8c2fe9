// Package notifications delivers recording lifecycle events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Completion and failure events carry their own config toggles so
// users can subscribe to either independently.
//
// Extend this package if you need alternative transports; pipeline code
// depends only on the simple Service interface.
package notifications
