// Package capture owns the live audio session from acquisition to the
// durable write.
//
// The Coordinator is the session state machine: it resolves a stream
// token from the host platform, hands it to a worker that reads
// interleaved PCM off the live stream, buffers fragments in memory,
// and persists the assembled take exactly once when the capture stops.
// Acquisition retries contended streams with a growing delay; every
// other platform failure is terminal immediately. A meter hub fans
// lossy level frames out to subscribers on the side.
//
// The Platform interface is the seam to the host audio layer; the
// ffmpeg service implements it against PulseAudio and tests substitute
// fakes. Keep session semantics here: transports call Coordinator
// methods and never touch the platform directly.
package capture
