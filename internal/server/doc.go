// Package server is the HTTP front end: recording uploads, processing
// triggers, status polling, session views and health. Auth is a shared
// bearer token; stored media is instead served against HMAC-signed expiring
// query tokens so external stage services can fetch uploads directly.
package server
