package testsupport

import (
	"encoding/binary"
	"math"
	"testing"

	"reel/internal/audio"
)

// SineWAV returns an encoded 16-bit WAV payload containing a sine tone
// at the given frequency, duplicated across channels.
func SineWAV(t testing.TB, freq, seconds float64, sampleRate, channels int) []byte {
	t.Helper()

	frames := int(seconds * float64(sampleRate))
	if frames < 1 {
		frames = 1
	}
	chans := make([][]float64, channels)
	tone := make([]float64, frames)
	for i := range tone {
		tone[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	for c := range chans {
		chans[c] = tone
	}
	payload, err := audio.NewPayload(sampleRate, chans)
	if err != nil {
		t.Fatalf("audio.NewPayload: %v", err)
	}
	data, err := audio.EncodeWAV(payload, 16)
	if err != nil {
		t.Fatalf("audio.EncodeWAV: %v", err)
	}
	return data
}

// PCM16Tone returns raw interleaved s16le PCM frames of a sine tone,
// the shape a live capture stream delivers.
func PCM16Tone(t testing.TB, freq float64, frames, sampleRate, channels int) []byte {
	t.Helper()

	out := make([]byte, 0, frames*channels*2)
	for i := 0; i < frames; i++ {
		s := audio.Quantize16(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		for c := 0; c < channels; c++ {
			out = binary.LittleEndian.AppendUint16(out, uint16(s))
		}
	}
	return out
}
