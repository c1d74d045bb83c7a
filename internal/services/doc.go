// Package services defines shared utilities consumed by the capture
// coordinator, the transcoding engine, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, recording IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (retryable contention vs terminal platform errors)
//     consistent across components.
//   - Thin abstractions that make command execution and output streaming from
//     external tools testable.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability, retries) stays uniform across the system.
package services
