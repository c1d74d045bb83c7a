package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Supported WAV bit depths.
const (
	BitDepth16 = 16
	BitDepth24 = 24
	BitDepth32 = 32
)

const wavHeaderSize = 44

var ErrMalformedWAV = errors.New("malformed wav data")

// EncodeWAV serializes the payload as a canonical little-endian PCM WAV file
// at the requested integer bit depth.
//
// Quantization is asymmetric to use the full signed range: negative samples
// scale by 2^(bits-1), non-negative samples by 2^(bits-1)-1.
func EncodeWAV(p *Payload, bitDepth int) ([]byte, error) {
	switch bitDepth {
	case BitDepth16, BitDepth24, BitDepth32:
	default:
		return nil, fmt.Errorf("encode wav: unsupported bit depth %d", bitDepth)
	}

	channels := p.ChannelCount()
	frames := p.Frames()
	bytesPerSample := bitDepth / 8
	dataLen := frames * channels * bytesPerSample

	out := make([]byte, 0, wavHeaderSize+dataLen)
	out = appendWAVHeader(out, p.SampleRate(), channels, bitDepth, dataLen)

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out = appendSample(out, p.Channel(c)[i], bitDepth)
		}
	}
	return out, nil
}

// WAVFromPCM16 wraps raw little-endian 16-bit interleaved PCM in a WAV
// container without touching the sample data. This is the fast path used when
// assembling captured fragments into a stored recording.
func WAVFromPCM16(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("wav from pcm: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("wav from pcm: invalid channel count %d", channels)
	}
	blockAlign := channels * 2
	if len(pcm)%blockAlign != 0 {
		return nil, fmt.Errorf("wav from pcm: %d bytes is not a whole number of frames", len(pcm))
	}
	out := make([]byte, 0, wavHeaderSize+len(pcm))
	out = appendWAVHeader(out, sampleRate, channels, BitDepth16, len(pcm))
	return append(out, pcm...), nil
}

func appendWAVHeader(dst []byte, sampleRate, channels, bitDepth, dataLen int) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	dst = append(dst, 'R', 'I', 'F', 'F')
	dst = binary.LittleEndian.AppendUint32(dst, uint32(36+dataLen))
	dst = append(dst, 'W', 'A', 'V', 'E')
	dst = append(dst, 'f', 'm', 't', ' ')
	dst = binary.LittleEndian.AppendUint32(dst, 16)
	dst = binary.LittleEndian.AppendUint16(dst, 1) // PCM
	dst = binary.LittleEndian.AppendUint16(dst, uint16(channels))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(sampleRate))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(byteRate))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(blockAlign))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(bitDepth))
	dst = append(dst, 'd', 'a', 't', 'a')
	dst = binary.LittleEndian.AppendUint32(dst, uint32(dataLen))
	return dst
}

func appendSample(dst []byte, s float64, bitDepth int) []byte {
	switch bitDepth {
	case BitDepth16:
		v := Quantize16(s)
		return binary.LittleEndian.AppendUint16(dst, uint16(v))
	case BitDepth24:
		v := quantize24(s)
		return append(dst, byte(v), byte(v>>8), byte(v>>16))
	default:
		v := quantize32(s)
		return binary.LittleEndian.AppendUint32(dst, uint32(v))
	}
}

// Quantize16 converts a [-1, 1] sample to signed 16-bit PCM using the
// asymmetric scaling rule.
func Quantize16(s float64) int16 {
	s = clampUnit(s)
	if s < 0 {
		return int16(math.Round(s * 32768))
	}
	return int16(math.Round(s * 32767))
}

// Dequantize16 is the inverse of Quantize16.
func Dequantize16(v int16) float64 {
	if v < 0 {
		return float64(v) / 32768
	}
	return float64(v) / 32767
}

func quantize24(s float64) int32 {
	s = clampUnit(s)
	if s < 0 {
		return int32(math.Round(s * 8388608))
	}
	return int32(math.Round(s * 8388607))
}

func quantize32(s float64) int32 {
	s = clampUnit(s)
	if s < 0 {
		v := math.Round(s * 2147483648)
		if v < math.MinInt32 {
			return math.MinInt32
		}
		return int32(v)
	}
	return int32(math.Round(s * 2147483647))
}

func clampUnit(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// DecodeWAV parses a PCM or IEEE-float WAV file into a payload.
func DecodeWAV(data []byte) (*Payload, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrMalformedWAV)
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bitDepth   int
		pcm        []byte
		haveFmt    bool
	)

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if chunkLen < 0 || body+chunkLen > len(data) {
			// Tolerate a truncated final data chunk; some writers leave the
			// size field stale after appending.
			if chunkID == "data" && body < len(data) {
				chunkLen = len(data) - body
			} else {
				return nil, fmt.Errorf("%w: chunk %q overruns file", ErrMalformedWAV, chunkID)
			}
		}

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too short", ErrMalformedWAV)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if format == 0xFFFE && chunkLen >= 40 {
				// WAVE_FORMAT_EXTENSIBLE: the real format lives in the
				// first two bytes of the subformat GUID.
				format = binary.LittleEndian.Uint16(data[body+24 : body+26])
			}
			haveFmt = true
		case "data":
			pcm = data[body : body+chunkLen]
		}

		// Chunks are word-aligned.
		if chunkLen%2 == 1 {
			chunkLen++
		}
		offset = body + chunkLen
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: fmt chunk missing", ErrMalformedWAV)
	}
	if pcm == nil {
		return nil, fmt.Errorf("%w: data chunk missing", ErrMalformedWAV)
	}
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid format (%d channels, %d Hz)", ErrMalformedWAV, channels, sampleRate)
	}

	switch format {
	case 1: // integer PCM
		switch bitDepth {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: unsupported PCM bit depth %d", ErrMalformedWAV, bitDepth)
		}
	case 3: // IEEE float
		if bitDepth != 32 {
			return nil, fmt.Errorf("%w: unsupported float bit depth %d", ErrMalformedWAV, bitDepth)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format tag %d", ErrMalformedWAV, format)
	}

	bytesPerSample := bitDepth / 8
	blockAlign := bytesPerSample * channels
	frames := len(pcm) / blockAlign

	planes := make([][]float64, channels)
	for c := range planes {
		planes[c] = make([]float64, frames)
	}

	for i := 0; i < frames; i++ {
		base := i * blockAlign
		for c := 0; c < channels; c++ {
			off := base + c*bytesPerSample
			planes[c][i] = decodeSample(pcm[off:off+bytesPerSample], format, bitDepth)
		}
	}
	return newPayloadOwned(sampleRate, planes), nil
}

func decodeSample(raw []byte, format uint16, bitDepth int) float64 {
	if format == 3 {
		bits := binary.LittleEndian.Uint32(raw)
		return clampUnit(float64(math.Float32frombits(bits)))
	}
	switch bitDepth {
	case 16:
		return Dequantize16(int16(binary.LittleEndian.Uint16(raw)))
	case 24:
		v := int32(raw[0]) | int32(raw[1])<<8 | int32(raw[2])<<16
		if v&0x800000 != 0 {
			v -= 0x1000000
		}
		if v < 0 {
			return float64(v) / 8388608
		}
		return float64(v) / 8388607
	default:
		v := int32(binary.LittleEndian.Uint32(raw))
		if v < 0 {
			return float64(v) / 2147483648
		}
		return float64(v) / 2147483647
	}
}
