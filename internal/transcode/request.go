package transcode

import (
	"bytes"
	"fmt"

	"reel/internal/services"
)

// Supported container identifiers.
const (
	ContainerWAV = "wav"
	ContainerMP3 = "mp3"
	ContainerOGG = "ogg"
)

// CropRange selects a window of the source audio in seconds. An
// EndSeconds of zero or less means "through the end of the recording".
type CropRange struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

// Request describes one conversion. Zero values leave the corresponding
// property of the source untouched; an empty Container keeps the source
// container unless another stage altered the audio, in which case the
// output falls back to WAV.
type Request struct {
	Container  string     `json:"container,omitempty"`
	SampleRate int        `json:"sample_rate,omitempty"`
	Channels   int        `json:"channels,omitempty"`
	BitDepth   int        `json:"bit_depth,omitempty"`
	Normalize  bool       `json:"normalize,omitempty"`
	Crop       *CropRange `json:"crop,omitempty"`
}

// Validate rejects requests the engine cannot serve. Crop windows are not
// validated here; out-of-range windows degrade to a no-op during
// processing.
func (r Request) Validate() error {
	switch r.Container {
	case "", ContainerWAV, ContainerMP3, ContainerOGG:
	default:
		return fmt.Errorf("%w: %q", services.ErrUnsupportedContainer, r.Container)
	}
	switch r.BitDepth {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d", services.ErrUnsupportedBitDepth, r.BitDepth)
	}
	if r.SampleRate != 0 && (r.SampleRate < 8000 || r.SampleRate > 192000) {
		return fmt.Errorf("%w: sample rate %d out of range", services.ErrValidation, r.SampleRate)
	}
	if r.Channels != 0 && (r.Channels < 1 || r.Channels > 2) {
		return fmt.Errorf("%w: %d channels", services.ErrUnsupportedChannelLayout, r.Channels)
	}
	return nil
}

var (
	riffMagic = []byte("RIFF")
	waveMagic = []byte("WAVE")
	oggMagic  = []byte("OggS")
	id3Magic  = []byte("ID3")
)

// SniffContainer identifies the container from the leading bytes: RIFF/WAVE,
// an Ogg page header, or an ID3 tag / MPEG audio sync word for mp3.
func SniffContainer(data []byte) (string, error) {
	if len(data) >= 12 && bytes.Equal(data[:4], riffMagic) && bytes.Equal(data[8:12], waveMagic) {
		return ContainerWAV, nil
	}
	if len(data) >= 4 && bytes.Equal(data[:4], oggMagic) {
		return ContainerOGG, nil
	}
	if len(data) >= 3 && bytes.Equal(data[:3], id3Magic) {
		return ContainerMP3, nil
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return ContainerMP3, nil
	}
	return "", fmt.Errorf("%w: unrecognized audio data", services.ErrUnsupportedContainer)
}
