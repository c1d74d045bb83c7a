// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal capture and store models into
// transport-friendly DTOs so socket and HTTP consumers never couple to
// internal types, and hosts the export workflows the CLI and daemon share.
//
// # Key Types
//
// Recording: transport representation of a stored capture.
//
// CaptureState: the reconciled session state machine answer.
//
// DaemonStatus: aggregated runtime information including dependencies and
// store totals.
//
// MeterFrame: one live level-meter sample for visualization.
//
// # Converters
//
// FromRecording / FromRecordings: store.Recording -> Recording.
//
// FromStateSnapshot: capture.StateSnapshot -> CaptureState.
//
// FromMeterFrame: capture.MeterFrame -> MeterFrame.
//
// FromDependencyStatuses: deps.Status -> DependencyStatus with derived
// severity.
//
// # Workflows
//
// ExportRecording, ExportAllRecordings, and CropRecording run the
// transcoding engine against store payloads and write the result to disk.
// They open the store read-only when the caller does not supply a handle,
// so the CLI works whether or not the daemon is running.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds. Durations and sizes stay
// numeric; rendering belongs to the consumer.
package api
