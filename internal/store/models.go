package store

import (
	"strings"
	"time"
)

// Compression tags stored against a recording's payload blob.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Recording is the metadata row for one stored capture. SizeBytes is
// the uncompressed payload length; the blob on disk may be smaller
// when compression is on.
type Recording struct {
	ID              string
	Name            string
	CreatedAt       time.Time
	DurationSeconds float64
	SampleRate      int
	Channels        int
	Container       string
	SizeBytes       int64
	Compression     string
}

// Validate rejects rows the store cannot persist.
func (r *Recording) Validate() error {
	if r == nil {
		return errNilRecording
	}
	if strings.TrimSpace(r.ID) == "" {
		return errMissingID
	}
	if r.SampleRate <= 0 {
		return errInvalidFormat
	}
	if r.Channels < 1 || r.Channels > 2 {
		return errInvalidFormat
	}
	return nil
}

// ActiveSession is the durable half of the coordinator state: one row
// that exists exactly while a capture is running.
type ActiveSession struct {
	Target     string
	StartedAt  time.Time
	SampleRate int
	Channels   int
}
