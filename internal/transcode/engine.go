package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"reel/internal/audio"
	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/services/ffmpeg"
)

// Encoder produces compressed containers from interleaved 16-bit PCM.
// *ffmpeg.Client satisfies it.
type Encoder interface {
	EncodeBlocks(ctx context.Context, spec ffmpeg.EncodeSpec, samples []int16) ([]byte, error)
}

// Options tune the engine; zero values fall back to defaults.
type Options struct {
	MP3BitrateKbps   int
	OggBitrateKbps   int
	NormalizeCeiling float64
}

// Engine runs the conversion pipeline in a fixed stage order: decode,
// resample, remix, normalize, crop, encode. Stages whose property the
// request leaves untouched pass the audio through unchanged.
type Engine struct {
	encoder Encoder
	opts    Options
	logger  *slog.Logger
}

// NewEngine constructs an engine. A nil encoder limits output to WAV and
// passthrough; a nil logger silences the engine.
func NewEngine(encoder Encoder, opts Options, logger *slog.Logger) *Engine {
	if opts.MP3BitrateKbps <= 0 {
		opts.MP3BitrateKbps = ffmpeg.DefaultBitrateKbps
	}
	if opts.OggBitrateKbps <= 0 {
		opts.OggBitrateKbps = ffmpeg.DefaultBitrateKbps
	}
	if opts.NormalizeCeiling <= 0 || opts.NormalizeCeiling > 1 {
		opts.NormalizeCeiling = audio.DefaultNormalizeCeiling
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{encoder: encoder, opts: opts, logger: logger}
}

// Result carries the converted audio and how it was produced.
type Result struct {
	Data            []byte
	Container       string
	SourceContainer string
	// Altered reports whether a transform stage changed the audio itself;
	// container-only conversions leave it false.
	Altered         bool
	DurationSeconds float64
}

// Convert applies the request to the source audio. When no stage alters
// the audio and the requested container matches the source (or is empty),
// the source bytes pass through untouched.
func (e *Engine) Convert(ctx context.Context, src []byte, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sourceContainer, err := SniffContainer(src)
	if err != nil {
		return nil, err
	}
	decoded, err := e.decode(sourceContainer, src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	processed := decoded
	if req.SampleRate != 0 {
		processed, err = audio.Resample(processed, req.SampleRate)
		if err != nil {
			return nil, err
		}
	}
	if req.Channels != 0 {
		processed, err = audio.Remix(processed, req.Channels)
		if err != nil {
			return nil, err
		}
	}
	if req.Normalize {
		processed = audio.Normalize(processed, e.opts.NormalizeCeiling)
	}
	if req.Crop != nil {
		end := req.Crop.EndSeconds
		if end <= 0 {
			end = processed.Duration()
		}
		processed = audio.Crop(processed, req.Crop.StartSeconds, end)
	}
	altered := processed != decoded

	target := req.Container
	if target == "" {
		if !altered && req.BitDepth == 0 {
			return passthrough(src, sourceContainer, decoded.Duration()), nil
		}
		target = ContainerWAV
	}
	// An explicit bit depth always re-encodes; the source depth is unknown
	// without reparsing and may differ.
	wantsDepth := target == ContainerWAV && req.BitDepth != 0
	if target == sourceContainer && !altered && !wantsDepth {
		return passthrough(src, sourceContainer, decoded.Duration()), nil
	}

	data, err := e.encode(ctx, processed, target, req.BitDepth)
	if err != nil {
		return nil, err
	}

	e.logger.Info("conversion complete",
		logging.String(logging.FieldEventType, "transcode_complete"),
		logging.String("source_container", sourceContainer),
		logging.String(logging.FieldContainer, target),
		logging.Float64("duration_seconds", processed.Duration()),
		logging.Bool("altered", altered),
	)
	return &Result{
		Data:            data,
		Container:       target,
		SourceContainer: sourceContainer,
		Altered:         altered,
		DurationSeconds: processed.Duration(),
	}, nil
}

// CropWindow is a convenience wrapper that trims the audio while keeping
// its container.
func (e *Engine) CropWindow(ctx context.Context, src []byte, startSeconds, endSeconds float64) (*Result, error) {
	container, err := SniffContainer(src)
	if err != nil {
		return nil, err
	}
	return e.Convert(ctx, src, Request{
		Container: container,
		Crop:      &CropRange{StartSeconds: startSeconds, EndSeconds: endSeconds},
	})
}

// CropBytes trims the audio and re-encodes the window as WAV at the given
// bit depth. A zero depth encodes 16-bit.
func (e *Engine) CropBytes(ctx context.Context, src []byte, startSeconds, endSeconds float64, bitDepth int) ([]byte, error) {
	result, err := e.Convert(ctx, src, Request{
		Container: ContainerWAV,
		BitDepth:  bitDepth,
		Crop:      &CropRange{StartSeconds: startSeconds, EndSeconds: endSeconds},
	})
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

func passthrough(src []byte, container string, duration float64) *Result {
	return &Result{
		Data:            src,
		Container:       container,
		SourceContainer: container,
		DurationSeconds: duration,
	}
}

func (e *Engine) decode(container string, src []byte) (*audio.Payload, error) {
	switch container {
	case ContainerWAV:
		payload, err := audio.DecodeWAV(src)
		if err != nil {
			return nil, services.Wrap(services.ErrDecodeFailed, "transcode", "decode wav", "", err)
		}
		return payload, nil
	case ContainerMP3:
		return decodeMP3(src)
	case ContainerOGG:
		return decodeOGG(src)
	}
	return nil, fmt.Errorf("%w: %q", services.ErrUnsupportedContainer, container)
}

func decodeMP3(src []byte) (*audio.Payload, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(src))
	if err != nil {
		return nil, services.Wrap(services.ErrDecodeFailed, "transcode", "decode mp3", "", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, services.Wrap(services.ErrDecodeFailed, "transcode", "decode mp3", "read stream", err)
	}

	// go-mp3 always emits interleaved stereo 16-bit little endian.
	frames := len(pcm) / 4
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left[i] = audio.Dequantize16(int16(binary.LittleEndian.Uint16(pcm[i*4:])))
		right[i] = audio.Dequantize16(int16(binary.LittleEndian.Uint16(pcm[i*4+2:])))
	}
	payload, err := audio.NewPayload(decoder.SampleRate(), [][]float64{left, right})
	if err != nil {
		return nil, services.Wrap(services.ErrDecodeFailed, "transcode", "decode mp3", "", err)
	}
	return payload, nil
}

func decodeOGG(src []byte) (*audio.Payload, error) {
	reader, err := oggvorbis.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, services.Wrap(services.ErrDecodeFailed, "transcode", "decode ogg", "", err)
	}
	channels := reader.Channels()
	if channels <= 0 {
		return nil, services.Wrap(services.ErrDecodeFailed, "transcode", "decode ogg", fmt.Sprintf("invalid channel count %d", channels), nil)
	}

	planes := make([][]float64, channels)
	buf := make([]float32, 4096*channels)
	for {
		n, err := reader.Read(buf)
		whole := n - n%channels
		for i := 0; i < whole; i += channels {
			for c := 0; c < channels; c++ {
				planes[c] = append(planes[c], float64(buf[i+c]))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrDecodeFailed, "transcode", "decode ogg", "read stream", err)
		}
	}
	payload, err := audio.NewPayload(reader.SampleRate(), planes)
	if err != nil {
		return nil, services.Wrap(services.ErrDecodeFailed, "transcode", "decode ogg", "", err)
	}
	return payload, nil
}

func (e *Engine) encode(ctx context.Context, p *audio.Payload, container string, bitDepth int) ([]byte, error) {
	if p.Frames() == 0 {
		// The source decoded cleanly but holds no audio, so this is an
		// input problem, not a codec one.
		return nil, services.Wrap(services.ErrValidation, "transcode", "encode", "source contains no audio frames", nil)
	}
	switch container {
	case ContainerWAV:
		depth := bitDepth
		if depth == 0 {
			depth = audio.BitDepth16
		}
		return audio.EncodeWAV(p, depth)
	case ContainerMP3, ContainerOGG:
		if e.encoder == nil {
			return nil, services.Wrap(services.ErrConfiguration, "transcode", "encode", "no encoder configured for "+container, nil)
		}
		interleaved := p.Interleaved()
		samples := make([]int16, len(interleaved))
		for i, v := range interleaved {
			samples[i] = audio.Quantize16(v)
		}
		bitrate := e.opts.MP3BitrateKbps
		if container == ContainerOGG {
			bitrate = e.opts.OggBitrateKbps
		}
		return e.encoder.EncodeBlocks(ctx, ffmpeg.EncodeSpec{
			Format:      container,
			SampleRate:  p.SampleRate(),
			Channels:    p.ChannelCount(),
			BitrateKbps: bitrate,
		}, samples)
	}
	return nil, fmt.Errorf("%w: %q", services.ErrUnsupportedContainer, container)
}
