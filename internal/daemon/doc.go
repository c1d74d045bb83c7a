// Package daemon coordinates the long-running reel process and system
// integration points.
//
// It wires configuration, the recordings store, and the capture coordinator
// into a single lifecycle with flock-based locking to prevent multiple
// instances. The daemon runs preflight checks at startup, exposes the capture
// and recordings operations the IPC service calls, and serves the loopback
// HTTP API with live meter streaming and Prometheus metrics.
//
// Keep orchestration logic here: capture mechanics belong to the capture
// package and transcoding to the transcode package, while the daemon focuses
// on startup, shutdown, and high level coordination.
package daemon
