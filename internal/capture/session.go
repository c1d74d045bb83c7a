package capture

import "time"

// State names one phase of the capture session lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateCapturing State = "capturing"
	StateStopping  State = "stopping"
)

// Session is the coordinator's record of the current capture attempt.
// The fragment buffer is append-only while capturing, owned solely by
// the coordinator, and written to the store exactly once at stop.
type Session struct {
	State     State
	Target    string
	Token     StreamToken
	StartedAt time.Time

	fragments     [][]byte
	bufferedBytes int64
}

// StateSnapshot is the reconciled answer to "is anything recording".
// Capturing is true when any of the in-memory state, the live worker,
// or the durable session row says so.
type StateSnapshot struct {
	Capturing        bool
	HasBufferedAudio bool
	Target           string
	StartedAt        time.Time
	ElapsedSeconds   float64
}

// StopResult references the recording a stop produced. Payload bytes
// stay in the store; callers export them through the transcoder.
type StopResult struct {
	RecordingID     string
	DurationSeconds float64
	Warning         string
}
