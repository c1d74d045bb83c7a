// Package store persists finished recordings and the durable half of
// the capture session state.
//
// Metadata lives in SQLite; payload bytes live as blob files under the
// recordings directory, zstd-compressed unless configured otherwise.
// SaveRecording is the exactly-once durable write performed when a
// capture stops. The single-row active_session table lets a restarted
// daemon know a capture was running when the previous process died.
package store
