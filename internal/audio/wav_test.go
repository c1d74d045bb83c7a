package audio_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"reel/internal/audio"
)

func TestWAV16RoundTripWithinOneStep(t *testing.T) {
	original := sinePayload(t, 44100, 2, 440, 0.8, 0.1)

	encoded, err := audio.EncodeWAV(original, audio.BitDepth16)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	decoded, err := audio.DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}

	if decoded.SampleRate() != original.SampleRate() {
		t.Fatalf("sample rate changed: %d", decoded.SampleRate())
	}
	if decoded.ChannelCount() != original.ChannelCount() {
		t.Fatalf("channel count changed: %d", decoded.ChannelCount())
	}
	if decoded.Frames() != original.Frames() {
		t.Fatalf("frame count changed: %d -> %d", original.Frames(), decoded.Frames())
	}

	step := 1.0 / 32767
	for c := 0; c < original.ChannelCount(); c++ {
		src := original.Channel(c)
		got := decoded.Channel(c)
		for i := range src {
			if math.Abs(src[i]-got[i]) > step {
				t.Fatalf("channel %d sample %d drifted beyond one step: %v -> %v", c, i, src[i], got[i])
			}
		}
	}
}

func TestWAVHeaderDataLengthMatchesPCM(t *testing.T) {
	p := sinePayload(t, 48000, 2, 1000, 0.5, 0.05)
	encoded, err := audio.EncodeWAV(p, audio.BitDepth16)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	wantData := p.Frames() * p.ChannelCount() * 2
	gotData := int(binary.LittleEndian.Uint32(encoded[40:44]))
	if gotData != wantData {
		t.Fatalf("data length field %d, want %d", gotData, wantData)
	}
	if len(encoded) != 44+wantData {
		t.Fatalf("file size %d, want %d", len(encoded), 44+wantData)
	}
	riffLen := int(binary.LittleEndian.Uint32(encoded[4:8]))
	if riffLen != 36+wantData {
		t.Fatalf("riff length field %d, want %d", riffLen, 36+wantData)
	}

	// Format block: PCM, channel count, rates, block align, depth.
	if format := binary.LittleEndian.Uint16(encoded[20:22]); format != 1 {
		t.Fatalf("format tag %d, want 1", format)
	}
	if channels := binary.LittleEndian.Uint16(encoded[22:24]); channels != 2 {
		t.Fatalf("channels %d", channels)
	}
	if rate := binary.LittleEndian.Uint32(encoded[24:28]); rate != 48000 {
		t.Fatalf("rate %d", rate)
	}
	if byteRate := binary.LittleEndian.Uint32(encoded[28:32]); byteRate != 48000*2*2 {
		t.Fatalf("byte rate %d", byteRate)
	}
	if blockAlign := binary.LittleEndian.Uint16(encoded[32:34]); blockAlign != 4 {
		t.Fatalf("block align %d", blockAlign)
	}
	if depth := binary.LittleEndian.Uint16(encoded[34:36]); depth != 16 {
		t.Fatalf("bit depth %d", depth)
	}
}

func TestWAVDeepDepthsRoundTrip(t *testing.T) {
	cases := []struct {
		depth     int
		tolerance float64
	}{
		{audio.BitDepth24, 1.0 / 8388607},
		{audio.BitDepth32, 1.0 / 2147483647},
	}
	for _, tc := range cases {
		p := sinePayload(t, 48000, 1, 440, 0.6, 0.02)
		encoded, err := audio.EncodeWAV(p, tc.depth)
		if err != nil {
			t.Fatalf("EncodeWAV depth %d: %v", tc.depth, err)
		}
		decoded, err := audio.DecodeWAV(encoded)
		if err != nil {
			t.Fatalf("DecodeWAV depth %d: %v", tc.depth, err)
		}
		src := p.Channel(0)
		got := decoded.Channel(0)
		if len(src) != len(got) {
			t.Fatalf("depth %d frame count changed", tc.depth)
		}
		for i := range src {
			if math.Abs(src[i]-got[i]) > tc.tolerance {
				t.Fatalf("depth %d sample %d drifted: %v -> %v", tc.depth, i, src[i], got[i])
			}
		}
	}
}

func TestEncodeWAVRejectsUnknownDepth(t *testing.T) {
	p := sinePayload(t, 48000, 1, 440, 0.5, 0.01)
	if _, err := audio.EncodeWAV(p, 8); err == nil {
		t.Fatal("expected error for 8-bit depth")
	}
}

func TestQuantize16UsesAsymmetricRange(t *testing.T) {
	if got := audio.Quantize16(-1); got != -32768 {
		t.Fatalf("Quantize16(-1) = %d", got)
	}
	if got := audio.Quantize16(1); got != 32767 {
		t.Fatalf("Quantize16(1) = %d", got)
	}
	if got := audio.Quantize16(0); got != 0 {
		t.Fatalf("Quantize16(0) = %d", got)
	}
	// Values beyond the legal range clamp instead of wrapping.
	if got := audio.Quantize16(1.5); got != 32767 {
		t.Fatalf("Quantize16(1.5) = %d", got)
	}
	if got := audio.Quantize16(-1.5); got != -32768 {
		t.Fatalf("Quantize16(-1.5) = %d", got)
	}
}

func TestWAVFromPCM16WrapsWithoutTouchingData(t *testing.T) {
	pcm := make([]byte, 0, 8)
	for _, v := range []int16{100, -100, 32767, -32768} {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
	}

	wav, err := audio.WAVFromPCM16(pcm, 48000, 2)
	if err != nil {
		t.Fatalf("WAVFromPCM16: %v", err)
	}
	if got := int(binary.LittleEndian.Uint32(wav[40:44])); got != len(pcm) {
		t.Fatalf("data length %d, want %d", got, len(pcm))
	}
	for i, b := range pcm {
		if wav[44+i] != b {
			t.Fatalf("pcm byte %d altered", i)
		}
	}

	if _, err := audio.WAVFromPCM16(pcm[:3], 48000, 2); err == nil {
		t.Fatal("expected error for partial frame")
	}
	if _, err := audio.WAVFromPCM16(pcm, 0, 2); err == nil {
		t.Fatal("expected error for zero rate")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := audio.DecodeWAV([]byte("definitely not audio")); !errors.Is(err, audio.ErrMalformedWAV) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if _, err := audio.DecodeWAV(nil); !errors.Is(err, audio.ErrMalformedWAV) {
		t.Fatalf("expected malformed error for empty input, got %v", err)
	}
	// Valid magic but no chunks.
	if _, err := audio.DecodeWAV([]byte("RIFF\x00\x00\x00\x00WAVE")); !errors.Is(err, audio.ErrMalformedWAV) {
		t.Fatalf("expected malformed error for chunkless file, got %v", err)
	}
}
