// Package ffmpeg mediates access to the ffmpeg CLI for live capture and
// offline encoding.
//
// It owns two concerns. The Client runs ffmpeg to completion: feeding raw
// PCM through stdin in encoder-sized blocks and collecting the compressed
// container from stdout. The Platform keeps a long-lived ffmpeg process
// attached to a PulseAudio source and hands its PCM stream to the capture
// worker, with pactl used to enumerate and resolve sources.
//
// Prefer this package over ad-hoc exec.Command usage when interacting with
// ffmpeg so error classification and stream teardown remain consistent.
package ffmpeg
