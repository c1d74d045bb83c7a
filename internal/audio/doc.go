// Package audio models decoded audio payloads and the pure transforms applied
// to them: linear-interpolation resampling, mono/stereo remixing, peak
// normalization, and cropping. It also owns the canonical WAV codec used for
// stored recordings and exports.
//
// Payloads are immutable; every transform returns a new value. That keeps
// concurrent conversions trivially safe and makes transform chains easy to
// reason about.
package audio
