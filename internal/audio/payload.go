package audio

import (
	"errors"
	"fmt"
	"math"
)

// Payload holds decoded audio as per-channel sample planes in [-1, 1].
// Payloads are immutable: transforms return a new value and never touch the
// source. Slices returned by accessors must therefore not be modified.
type Payload struct {
	sampleRate int
	channels   [][]float64
}

// NewPayload validates and copies the provided channel planes.
func NewPayload(sampleRate int, channels [][]float64) (*Payload, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio payload: invalid sample rate %d", sampleRate)
	}
	if len(channels) == 0 {
		return nil, errors.New("audio payload: at least one channel required")
	}
	frames := len(channels[0])
	planes := make([][]float64, len(channels))
	for i, ch := range channels {
		if len(ch) != frames {
			return nil, fmt.Errorf("audio payload: channel %d has %d samples, want %d", i, len(ch), frames)
		}
		planes[i] = append([]float64(nil), ch...)
	}
	return &Payload{sampleRate: sampleRate, channels: planes}, nil
}

// newPayloadOwned wraps planes the caller guarantees are freshly allocated.
func newPayloadOwned(sampleRate int, channels [][]float64) *Payload {
	return &Payload{sampleRate: sampleRate, channels: channels}
}

// SampleRate returns the payload sample rate in Hz.
func (p *Payload) SampleRate() int { return p.sampleRate }

// ChannelCount returns the number of channels.
func (p *Payload) ChannelCount() int { return len(p.channels) }

// Frames returns the per-channel sample count.
func (p *Payload) Frames() int {
	if len(p.channels) == 0 {
		return 0
	}
	return len(p.channels[0])
}

// Duration returns the payload length in seconds.
func (p *Payload) Duration() float64 {
	if p.sampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.sampleRate)
}

// Channel returns the sample plane for the given channel index.
func (p *Payload) Channel(i int) []float64 {
	return p.channels[i]
}

// Clone returns a deep copy.
func (p *Payload) Clone() *Payload {
	planes := make([][]float64, len(p.channels))
	for i, ch := range p.channels {
		planes[i] = append([]float64(nil), ch...)
	}
	return newPayloadOwned(p.sampleRate, planes)
}

// Peak returns the largest absolute sample value across all channels.
func (p *Payload) Peak() float64 {
	peak := 0.0
	for _, ch := range p.channels {
		for _, s := range ch {
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// Interleaved returns samples in frame order (ch0, ch1, ch0, ch1, ...).
func (p *Payload) Interleaved() []float64 {
	frames := p.Frames()
	chans := len(p.channels)
	out := make([]float64, 0, frames*chans)
	for i := 0; i < frames; i++ {
		for c := 0; c < chans; c++ {
			out = append(out, p.channels[c][i])
		}
	}
	return out
}
