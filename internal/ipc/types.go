package ipc

import (
	"time"

	"reel/internal/api"
	"reel/internal/capture"
)

// Recording mirrors the HTTP API recording DTO for internal IPC callers.
type Recording = api.Recording

// CaptureState mirrors the HTTP API capture state DTO.
type CaptureState = api.CaptureState

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StoreSummary aggregates recordings bookkeeping.
type StoreSummary = api.StoreSummary

// StreamToken is the wire form of a single-use capture grant. The
// daemon issues it from Start and redeems it in StartWithToken.
type StreamToken struct {
	ID         string `json:"id"`
	Target     string `json:"target"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	IssuedAt   string `json:"issued_at"`
}

// FromCaptureToken converts a coordinator token to its wire form.
func FromCaptureToken(token capture.StreamToken) StreamToken {
	wire := StreamToken{
		ID:         token.ID,
		Target:     token.Target,
		SampleRate: token.Format.SampleRate,
		Channels:   token.Format.Channels,
	}
	if !token.IssuedAt.IsZero() {
		wire.IssuedAt = token.IssuedAt.UTC().Format(time.RFC3339Nano)
	}
	return wire
}

// ToCaptureToken converts the wire token back to the coordinator type.
func (t StreamToken) ToCaptureToken() capture.StreamToken {
	token := capture.StreamToken{
		ID:     t.ID,
		Target: t.Target,
		Format: capture.FrameFormat{
			SampleRate: t.SampleRate,
			Channels:   t.Channels,
		},
	}
	if t.IssuedAt != "" {
		if issued, err := time.Parse(time.RFC3339Nano, t.IssuedAt); err == nil {
			token.IssuedAt = issued
		}
	}
	return token
}

// PingRequest probes daemon liveness.
type PingRequest struct{}

// PingResponse acknowledges a ping.
type PingResponse struct{}

// StartRequest resolves a capture stream for the target source.
// An empty target selects the configured or platform default.
type StartRequest struct {
	Target string `json:"target"`
}

// StartResponse carries the single-use token for the resolved stream.
type StartResponse struct {
	Token StreamToken `json:"token"`
}

// StartWithTokenRequest redeems a token and begins buffering audio.
type StartWithTokenRequest struct {
	Token StreamToken `json:"token"`
}

// StartWithTokenResponse acknowledges capture start.
type StartWithTokenResponse struct{}

// StopRequest finalizes the active capture and persists the recording.
type StopRequest struct{}

// StopResponse reports the stop outcome. Stopped is false when no
// session was active; the call still succeeds.
type StopResponse struct {
	Stopped         bool    `json:"stopped"`
	RecordingID     string  `json:"recording_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	Warning         string  `json:"warning"`
}

// StateRequest fetches the reconciled capture session state.
type StateRequest struct{}

// StateResponse reports whether anything is recording and how long.
type StateResponse struct {
	Capturing        bool    `json:"capturing"`
	HasBufferedAudio bool    `json:"has_buffered_audio"`
	Target           string  `json:"target"`
	StartedAt        string  `json:"started_at"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
}

// ClearRequest discards the session buffer and durable row.
type ClearRequest struct{}

// ClearResponse acknowledges a clear.
type ClearResponse struct{}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon runtime information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Version      string             `json:"version"`
	StartedAt    string             `json:"started_at"`
	DatabasePath string             `json:"database_path"`
	LockPath     string             `json:"lock_path"`
	Capture      CaptureState       `json:"capture"`
	Store        StoreSummary       `json:"store"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// RecordingsListRequest lists stored recordings.
type RecordingsListRequest struct{}

// RecordingsListResponse contains recordings, newest first.
type RecordingsListResponse struct {
	Items []Recording `json:"items"`
}

// RecordingsDescribeRequest fetches a single recording by id.
type RecordingsDescribeRequest struct {
	ID string `json:"id"`
}

// RecordingsDescribeResponse contains a single recording.
type RecordingsDescribeResponse struct {
	Item Recording `json:"item"`
}

// RecordingsRemoveRequest deletes recordings by id.
type RecordingsRemoveRequest struct {
	IDs []string `json:"ids"`
}

// RecordingsRemoveResponse reports the number of removed recordings.
type RecordingsRemoveResponse struct {
	Removed int `json:"removed"`
}

// RecordingsRenameRequest updates a recording's display name.
type RecordingsRenameRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecordingsRenameResponse reports whether the recording existed.
type RecordingsRenameResponse struct {
	Renamed bool `json:"renamed"`
}
