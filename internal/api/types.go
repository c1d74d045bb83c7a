package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Recording describes a stored capture in a transport-friendly format.
type Recording struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
	SampleRate      int     `json:"sampleRate"`
	Channels        int     `json:"channels"`
	Container       string  `json:"container"`
	SizeBytes       int64   `json:"sizeBytes"`
	Compression     string  `json:"compression,omitempty"`
}

// CaptureState reports the reconciled capture session state.
type CaptureState struct {
	Capturing        bool    `json:"capturing"`
	HasBufferedAudio bool    `json:"hasBufferedAudio"`
	Target           string  `json:"target,omitempty"`
	StartedAt        string  `json:"startedAt,omitempty"`
	ElapsedSeconds   float64 `json:"elapsedSeconds"`
}

// MeterFrame carries one level-meter sample. Peak and RMS are linear
// amplitudes in [0, 1]; index 0 is the left (or only) channel.
type MeterFrame struct {
	Channels       int        `json:"channels"`
	Peak           [2]float64 `json:"peak"`
	RMS            [2]float64 `json:"rms"`
	ElapsedSeconds float64    `json:"elapsedSeconds"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
	Severity    string `json:"severity"`
}

// StoreSummary aggregates recordings bookkeeping for status displays.
type StoreSummary struct {
	Recordings int   `json:"recordings"`
	TotalBytes int64 `json:"totalBytes"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Version      string             `json:"version,omitempty"`
	StartedAt    string             `json:"startedAt,omitempty"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Capture      CaptureState       `json:"capture"`
	Store        StoreSummary       `json:"store"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ExportRequest selects the output encoding for a recording export.
// Zero-valued fields keep the stored property; an all-zero request is a
// byte-for-byte passthrough of the stored payload.
type ExportRequest struct {
	Container        string  `json:"container,omitempty"`
	SampleRate       int     `json:"sampleRate,omitempty"`
	Channels         int     `json:"channels,omitempty"`
	BitDepth         int     `json:"bitDepth,omitempty"`
	Normalize        bool    `json:"normalize,omitempty"`
	CropStartSeconds float64 `json:"cropStartSeconds,omitempty"`
	CropEndSeconds   float64 `json:"cropEndSeconds,omitempty"`
}

// RecordingListResponse wraps a collection of recordings for API responses.
type RecordingListResponse struct {
	Items []Recording `json:"items"`
}

// RecordingResponse wraps a single recording.
type RecordingResponse struct {
	Item Recording `json:"item"`
}
