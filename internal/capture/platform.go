package capture

import (
	"context"
	"fmt"
	"time"
)

// FrameFormat fixes the PCM shape a stream delivers: interleaved
// little-endian signed 16-bit samples at the given rate and layout.
type FrameFormat struct {
	SampleRate int
	Channels   int
}

// BytesPerFrame returns the interleaved byte width of one frame.
func (f FrameFormat) BytesPerFrame() int {
	return f.Channels * 2
}

// Validate rejects formats the capture pipeline cannot carry.
func (f FrameFormat) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	return nil
}

// StreamToken is a single-use grant issued by ResolveStream and redeemed
// by OpenStream. Redeeming a token twice fails.
type StreamToken struct {
	ID       string
	Target   string
	Format   FrameFormat
	IssuedAt time.Time
}

// Source describes one host audio source the platform can capture from.
type Source struct {
	ID          string
	Description string
	Monitor     bool
	Default     bool
	State       string
}

// Stream delivers live PCM in the format reported by Format. Read blocks
// until data arrives or the underlying stream dies; Close tears the
// stream down and releases the host device.
type Stream interface {
	Format() FrameFormat
	Read(p []byte) (int, error)
	Close() error
}

// Platform abstracts host audio acquisition so the session coordinator
// can run against a fake in tests.
type Platform interface {
	ResolveStream(ctx context.Context, target string) (StreamToken, error)
	OpenStream(ctx context.Context, token StreamToken) (Stream, error)
	ListSources(ctx context.Context) ([]Source, error)
}
