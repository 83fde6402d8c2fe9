// Package main hosts the Podium CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the Podium server: recording uploads, processing triggers,
// status watching, session views, and configuration scaffolding. The serve
// command runs the server itself in the foreground.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
