package ffmpeg

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"reel/internal/services"
)

// EncodeBlockFrames is the number of PCM frames fed to the encoder per
// stdin write. It matches the MPEG layer III granule size so lame sees
// whole encoder frames; vorbis does not care but benefits from the same
// steady cadence.
const EncodeBlockFrames = 1152

// DefaultBitrateKbps is used when a spec leaves the bitrate unset.
const DefaultBitrateKbps = 128

// EncodeSpec describes one compressed-output encode.
type EncodeSpec struct {
	Format      string
	SampleRate  int
	Channels    int
	BitrateKbps int
}

// Validate rejects specs the encoder cannot serve.
func (s EncodeSpec) Validate() error {
	switch s.Format {
	case "mp3", "ogg":
	default:
		return fmt.Errorf("%w: encode format %q", services.ErrUnsupportedContainer, s.Format)
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("encode spec: invalid sample rate %d", s.SampleRate)
	}
	if s.Channels < 1 || s.Channels > 2 {
		return fmt.Errorf("encode spec: invalid channel count %d", s.Channels)
	}
	return nil
}

// EncodeBlocks converts interleaved 16-bit samples into the requested
// compressed container. The PCM is streamed to a single ffmpeg process in
// full blocks of EncodeBlockFrames frames followed by one short residual
// block for whatever remains.
func (c *Client) EncodeBlocks(ctx context.Context, spec EncodeSpec, samples []int16) ([]byte, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.BitrateKbps <= 0 {
		spec.BitrateKbps = DefaultBitrateKbps
	}
	if len(samples)%spec.Channels != 0 {
		return nil, fmt.Errorf("encode %s: %d samples is not a whole number of frames", spec.Format, len(samples))
	}

	pcm := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s))
	}
	reader := &blockReader{
		data:  pcm,
		block: EncodeBlockFrames * spec.Channels * 2,
	}

	out, err := c.exec.Run(ctx, c.binary, encodeArgs(spec), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", services.ErrExternalTool, spec.Format, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: encode %s: encoder produced no output", services.ErrExternalTool, spec.Format)
	}
	return out, nil
}

func encodeArgs(spec EncodeSpec) []string {
	args := []string{
		"-v", "error", "-hide_banner",
		"-f", "s16le",
		"-ar", strconv.Itoa(spec.SampleRate),
		"-ac", strconv.Itoa(spec.Channels),
		"-i", "pipe:0",
	}
	switch spec.Format {
	case "mp3":
		args = append(args, "-f", "mp3", "-codec:a", "libmp3lame")
	case "ogg":
		args = append(args, "-f", "ogg", "-codec:a", "libvorbis")
	}
	args = append(args, "-b:a", fmt.Sprintf("%dk", spec.BitrateKbps), "pipe:1")
	return args
}

// blockReader yields the PCM stream one encoder block per read so the
// process consumes whole frames. The final read returns the residual.
type blockReader struct {
	data  []byte
	block int
	off   int
}

func (r *blockReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := r.block
	if remaining := len(r.data) - r.off; n > remaining {
		n = remaining
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[r.off:r.off+n])
	r.off += n
	return n, nil
}
