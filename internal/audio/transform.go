package audio

import (
	"fmt"
	"math"

	"reel/internal/services"
)

// DefaultNormalizeCeiling is the peak target applied when no explicit ceiling
// is configured.
const DefaultNormalizeCeiling = 0.95

// Resample converts the payload to targetRate using linear interpolation.
// For output index i the source position is i * (sourceRate / targetRate);
// reads past the final source sample clamp to it. Matching rates are a no-op
// returning the original payload.
func Resample(p *Payload, targetRate int) (*Payload, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("resample: invalid target rate %d", targetRate)
	}
	if targetRate == p.sampleRate {
		return p, nil
	}

	srcFrames := p.Frames()
	if srcFrames == 0 {
		planes := make([][]float64, p.ChannelCount())
		for i := range planes {
			planes[i] = []float64{}
		}
		return newPayloadOwned(targetRate, planes), nil
	}

	ratio := float64(p.sampleRate) / float64(targetRate)
	dstFrames := int(math.Round(float64(srcFrames) * float64(targetRate) / float64(p.sampleRate)))
	if dstFrames < 1 {
		dstFrames = 1
	}

	planes := make([][]float64, p.ChannelCount())
	for c, src := range p.channels {
		dst := make([]float64, dstFrames)
		for i := 0; i < dstFrames; i++ {
			pos := float64(i) * ratio
			i0 := int(pos)
			if i0 >= srcFrames-1 {
				dst[i] = src[srcFrames-1]
				continue
			}
			frac := pos - float64(i0)
			dst[i] = src[i0]*(1-frac) + src[i0+1]*frac
		}
		planes[c] = dst
	}
	return newPayloadOwned(targetRate, planes), nil
}

// Remix converts between mono and stereo. Stereo collapses to mono by
// per-sample averaging; mono expands to stereo by duplication. Matching
// counts are a no-op. Any other combination is rejected.
func Remix(p *Payload, targetChannels int) (*Payload, error) {
	current := p.ChannelCount()
	switch {
	case targetChannels == current:
		return p, nil
	case current == 2 && targetChannels == 1:
		left, right := p.channels[0], p.channels[1]
		mono := make([]float64, len(left))
		for i := range mono {
			mono[i] = (left[i] + right[i]) / 2
		}
		return newPayloadOwned(p.sampleRate, [][]float64{mono}), nil
	case current == 1 && targetChannels == 2:
		src := p.channels[0]
		left := append([]float64(nil), src...)
		right := append([]float64(nil), src...)
		return newPayloadOwned(p.sampleRate, [][]float64{left, right}), nil
	default:
		return nil, fmt.Errorf("%w: remix %d to %d channels", services.ErrUnsupportedChannelLayout, current, targetChannels)
	}
}

// Normalize scales the payload so its absolute peak meets the ceiling.
// Silence and payloads already at the ceiling pass through unchanged.
func Normalize(p *Payload, ceiling float64) *Payload {
	if ceiling <= 0 || ceiling > 1 {
		ceiling = DefaultNormalizeCeiling
	}
	peak := p.Peak()
	if peak == 0 || math.Abs(peak-ceiling) < 1e-9 {
		return p
	}
	scale := ceiling / peak
	planes := make([][]float64, p.ChannelCount())
	for c, src := range p.channels {
		dst := make([]float64, len(src))
		for i, s := range src {
			dst[i] = s * scale
		}
		planes[c] = dst
	}
	return newPayloadOwned(p.sampleRate, planes)
}

// Crop returns the payload restricted to [startSeconds, endSeconds). Sample
// indices are rounded from seconds. Empty or out-of-range ranges are a
// lenient no-op returning the original payload, never an error.
func Crop(p *Payload, startSeconds, endSeconds float64) *Payload {
	frames := p.Frames()
	start := int(math.Round(startSeconds * float64(p.sampleRate)))
	end := int(math.Round(endSeconds * float64(p.sampleRate)))
	if start < 0 {
		start = 0
	}
	if end > frames {
		end = frames
	}
	if start >= frames || end <= start {
		return p
	}
	if start == 0 && end == frames {
		return p
	}
	planes := make([][]float64, p.ChannelCount())
	for c, src := range p.channels {
		planes[c] = append([]float64(nil), src[start:end]...)
	}
	return newPayloadOwned(p.sampleRate, planes)
}
