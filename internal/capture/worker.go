package capture

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"reel/internal/logging"
	"reel/internal/services"
)

const eventBuffer = 64

// worker owns the live platform stream for exactly one session. It
// reads interleaved PCM off the stream, cuts it into fragments on a
// fixed cadence, and reports level-meter frames on the side. Neither
// output blocks the other: fragments are delivered reliably in order,
// meter frames are dropped when nobody keeps up.
type worker struct {
	platform Platform
	logger   *slog.Logger

	fragmentInterval time.Duration
	meterInterval    time.Duration

	ch   chan Event
	done chan struct{}

	mu        sync.Mutex
	began     bool
	stream    Stream
	format    FrameFormat
	startedAt time.Time

	finalizing atomic.Bool
	closeOnce  sync.Once

	meterMu sync.Mutex
	accum   meterAccum
}

type meterAccum struct {
	peak    [2]float64
	sumsq   [2]float64
	samples [2]int64
}

func newWorker(platform Platform, fragmentInterval, meterInterval time.Duration, logger *slog.Logger) *worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &worker{
		platform:         platform,
		logger:           logger,
		fragmentInterval: fragmentInterval,
		meterInterval:    meterInterval,
		ch:               make(chan Event, eventBuffer),
		done:             make(chan struct{}),
	}
}

func (w *worker) events() <-chan Event {
	return w.ch
}

// begin redeems the single-use token for the live stream and starts the
// capture loops. The return value is the synchronous ack: nil means
// audio is flowing.
func (w *worker) begin(ctx context.Context, token StreamToken) error {
	w.mu.Lock()
	if w.began {
		w.mu.Unlock()
		return services.Wrap(services.ErrValidation, "capture", "begin", "worker already started", nil)
	}
	w.mu.Unlock()

	stream, err := w.platform.OpenStream(ctx, token)
	if err != nil {
		return err
	}
	format := stream.Format()
	if err := format.Validate(); err != nil {
		_ = stream.Close()
		return services.Wrap(services.ErrCapturePlatform, "capture", "begin", "stream format rejected", err)
	}

	w.mu.Lock()
	w.began = true
	w.stream = stream
	w.format = format
	w.startedAt = time.Now()
	w.mu.Unlock()

	go w.run(stream, format)
	return nil
}

// finalize forces the residual fragment out and closes the stream. The
// worker acks by emitting the final fragment followed by Finalized.
func (w *worker) finalize() {
	w.finalizing.Store(true)
	w.closeStream()
}

// destroy tears the worker down unconditionally and waits for its loops
// to exit. Safe to call repeatedly; a no-op before begin.
func (w *worker) destroy() {
	w.mu.Lock()
	began := w.began
	w.mu.Unlock()
	if !began {
		return
	}
	w.closeStream()
	<-w.done
}

// live reports whether the capture loop is still running.
func (w *worker) live() bool {
	w.mu.Lock()
	began := w.began
	w.mu.Unlock()
	if !began {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *worker) closeStream() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		stream := w.stream
		w.mu.Unlock()
		if stream == nil {
			return
		}
		if err := stream.Close(); err != nil {
			w.logger.Debug("stream close", logging.Error(err))
		}
	})
}

func (w *worker) run(stream Stream, format FrameFormat) {
	meterStop := make(chan struct{})
	meterDone := make(chan struct{})
	go w.meterLoop(meterStop, meterDone)

	defer func() {
		close(meterStop)
		<-meterDone
		close(w.ch)
		close(w.done)
	}()

	frameBytes := format.BytesPerFrame()
	buf := make([]byte, fragmentSize(format, w.fragmentInterval))
	fill := 0

	for {
		n, err := stream.Read(buf[fill:])
		if n > 0 {
			w.observeMeter(buf[fill:fill+n], fill/2, format.Channels)
			fill += n
			if fill == len(buf) {
				fragment := make([]byte, fill)
				copy(fragment, buf)
				w.ch <- FragmentReady{Data: fragment}
				fill = 0
			}
		}
		if err != nil {
			w.closeStream()
			// Force the residual out, trimmed to a frame boundary.
			fill -= fill % frameBytes
			if fill > 0 {
				fragment := make([]byte, fill)
				copy(fragment, buf[:fill])
				w.ch <- FragmentReady{Data: fragment}
			}
			if w.finalizing.Load() {
				w.ch <- Finalized{}
			} else {
				w.ch <- Failed{Err: services.Wrap(services.ErrCapturePlatform, "capture", "stream", "stream ended unexpectedly", err)}
			}
			return
		}
	}
}

func (w *worker) meterLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if w.meterInterval <= 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(w.meterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame, ok := w.takeMeter()
			if !ok {
				continue
			}
			select {
			case w.ch <- Meter{Frame: frame}:
			default:
			}
		}
	}
}

// observeMeter folds a slice of interleaved s16le samples into the
// pending meter accumulator. startSample keeps the channel phase
// aligned across partial reads; the fragment buffer is frame-aligned,
// so byte offset fill/2 is the absolute sample index.
func (w *worker) observeMeter(b []byte, startSample, channels int) {
	w.meterMu.Lock()
	defer w.meterMu.Unlock()
	for i := 0; i+1 < len(b); i += 2 {
		s := int16(binary.LittleEndian.Uint16(b[i:]))
		ch := (startSample + i/2) % channels
		v := float64(s) / 32768.0
		if v < 0 {
			v = -v
		}
		if v > w.accum.peak[ch] {
			w.accum.peak[ch] = v
		}
		w.accum.sumsq[ch] += v * v
		w.accum.samples[ch]++
	}
}

func (w *worker) takeMeter() (MeterFrame, bool) {
	w.meterMu.Lock()
	accum := w.accum
	w.accum = meterAccum{}
	w.meterMu.Unlock()

	if accum.samples[0] == 0 {
		return MeterFrame{}, false
	}
	frame := MeterFrame{
		Channels: w.format.Channels,
		Elapsed:  time.Since(w.startedAt).Seconds(),
	}
	for ch := 0; ch < w.format.Channels && ch < 2; ch++ {
		frame.Peak[ch] = accum.peak[ch]
		if accum.samples[ch] > 0 {
			frame.RMS[ch] = math.Sqrt(accum.sumsq[ch] / float64(accum.samples[ch]))
		}
	}
	return frame, true
}

// fragmentSize returns the fragment length in bytes for the given
// format and cadence, always a whole number of frames.
func fragmentSize(format FrameFormat, interval time.Duration) int {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	frames := int(int64(format.SampleRate) * int64(interval) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	return frames * format.BytesPerFrame()
}
