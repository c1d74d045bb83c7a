package capture

// Event is one worker notification delivered on the session event
// channel. Fragments and lifecycle events are reliable and ordered;
// meter frames are lossy.
type Event interface {
	isEvent()
}

// FragmentReady carries one interleaved s16le PCM fragment in capture
// order.
type FragmentReady struct {
	Data []byte
}

// Meter carries one level-meter frame. Frames are dropped rather than
// queued when the consumer lags.
type Meter struct {
	Frame MeterFrame
}

// Finalized reports that the stream drained and closed cleanly after a
// finalize request. The final forced fragment always precedes it.
type Finalized struct{}

// Failed reports that the stream died mid-capture. Any residual
// fragment precedes it.
type Failed struct {
	Err error
}

func (FragmentReady) isEvent() {}
func (Meter) isEvent()         {}
func (Finalized) isEvent()     {}
func (Failed) isEvent()        {}

// MeterFrame summarizes the audio consumed since the previous frame.
// Peak and RMS are linear in [0,1] per channel; mono fills index 0
// only.
type MeterFrame struct {
	Channels int        `json:"channels"`
	Peak     [2]float64 `json:"peak"`
	RMS      [2]float64 `json:"rms"`
	Elapsed  float64    `json:"elapsed_seconds"`
}
