// Package media is the filesystem blob store for uploaded recordings.
// Files live under DataDir/media keyed by an opaque locator, and access for
// external services goes through HMAC-signed, expiring query tokens rather
// than the API bearer token.
package media
