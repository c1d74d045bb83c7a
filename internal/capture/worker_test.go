package capture

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"reel/internal/services"
)

func beginWorker(t *testing.T, platform *fakePlatform, fragmentInterval time.Duration) (*worker, *fakeStream) {
	t.Helper()
	ctx := context.Background()
	token, err := platform.ResolveStream(ctx, "source")
	if err != nil {
		t.Fatalf("ResolveStream failed: %v", err)
	}
	w := newWorker(platform, fragmentInterval, 0, nil)
	if err := w.begin(ctx, token); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	t.Cleanup(w.destroy)
	return w, platform.lastStream()
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed early")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return nil
}

func expectClosed(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("expected channel close, got %T", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestWorkerCutsFragmentsOnCadence(t *testing.T) {
	platform := newFakePlatform(FrameFormat{SampleRate: 8000, Channels: 1})
	w, stream := beginWorker(t, platform, 10*time.Millisecond)

	// 10ms at 8 kHz mono is 80 frames, 160 bytes. Deliver one fragment
	// split across two reads.
	first := constantPCM(stream.format, 50, 100)
	second := constantPCM(stream.format, 30, 200)
	stream.push(t, first)
	stream.push(t, second)

	ev := nextEvent(t, w.events())
	fragment, ok := ev.(FragmentReady)
	if !ok {
		t.Fatalf("expected FragmentReady, got %T", ev)
	}
	if len(fragment.Data) != 160 {
		t.Fatalf("expected a 160 byte fragment, got %d", len(fragment.Data))
	}
	if !bytes.Equal(fragment.Data, append(append([]byte{}, first...), second...)) {
		t.Fatal("fragment bytes differ from the delivered PCM")
	}

	w.finalize()
	if _, ok := nextEvent(t, w.events()).(Finalized); !ok {
		t.Fatal("expected Finalized after finalize with an empty buffer")
	}
	expectClosed(t, w.events())
}

func TestWorkerFlushesResidualOnFinalize(t *testing.T) {
	platform := newFakePlatform(FrameFormat{SampleRate: 8000, Channels: 1})
	w, stream := beginWorker(t, platform, 10*time.Millisecond)

	residual := constantPCM(stream.format, 30, 300)
	stream.push(t, residual)
	w.finalize()

	ev := nextEvent(t, w.events())
	fragment, ok := ev.(FragmentReady)
	if !ok {
		t.Fatalf("expected the residual fragment, got %T", ev)
	}
	if !bytes.Equal(fragment.Data, residual) {
		t.Fatalf("expected %d residual bytes, got %d", len(residual), len(fragment.Data))
	}
	if _, ok := nextEvent(t, w.events()).(Finalized); !ok {
		t.Fatal("expected Finalized after the residual")
	}
	expectClosed(t, w.events())
	if w.live() {
		t.Fatal("expected worker to report not live after finalize")
	}
}

func TestWorkerReportsStreamDeath(t *testing.T) {
	platform := newFakePlatform(FrameFormat{SampleRate: 8000, Channels: 1})
	w, stream := beginWorker(t, platform, 10*time.Millisecond)

	residual := constantPCM(stream.format, 20, 400)
	stream.push(t, residual)
	stream.fail()

	ev := nextEvent(t, w.events())
	fragment, ok := ev.(FragmentReady)
	if !ok {
		t.Fatalf("expected the residual fragment, got %T", ev)
	}
	if !bytes.Equal(fragment.Data, residual) {
		t.Fatal("residual bytes differ from the delivered PCM")
	}

	ev = nextEvent(t, w.events())
	failed, ok := ev.(Failed)
	if !ok {
		t.Fatalf("expected Failed, got %T", ev)
	}
	if !errors.Is(failed.Err, services.ErrCapturePlatform) {
		t.Fatalf("expected ErrCapturePlatform, got %v", failed.Err)
	}
	expectClosed(t, w.events())
}

func TestWorkerRejectsRedeemedToken(t *testing.T) {
	platform := newFakePlatform(FrameFormat{SampleRate: 8000, Channels: 1})
	ctx := context.Background()
	token, err := platform.ResolveStream(ctx, "source")
	if err != nil {
		t.Fatalf("ResolveStream failed: %v", err)
	}

	w := newWorker(platform, 10*time.Millisecond, 0, nil)
	if err := w.begin(ctx, token); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	defer w.destroy()

	other := newWorker(platform, 10*time.Millisecond, 0, nil)
	if err := other.begin(ctx, token); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for a redeemed token, got %v", err)
	}
}

func TestWorkerDestroyBeforeBegin(t *testing.T) {
	platform := newFakePlatform(FrameFormat{SampleRate: 8000, Channels: 1})
	w := newWorker(platform, 10*time.Millisecond, 0, nil)
	w.destroy()
	if w.live() {
		t.Fatal("expected unstarted worker to report not live")
	}
}

func TestObserveMeterKeepsChannelPhase(t *testing.T) {
	w := &worker{format: FrameFormat{SampleRate: 8000, Channels: 2}, startedAt: time.Now()}

	// Left holds 0.5, right holds 0.25. Split the interleaved stream at
	// an odd sample offset so the second read starts mid-frame.
	left, right := int16(16384), int16(8192)
	interleaved := make([]byte, 0, 8*4)
	for i := 0; i < 8; i++ {
		interleaved = appendSampleLE(interleaved, left)
		interleaved = appendSampleLE(interleaved, right)
	}
	w.observeMeter(interleaved[:6], 0, 2)
	w.observeMeter(interleaved[6:], 3, 2)

	frame, ok := w.takeMeter()
	if !ok {
		t.Fatal("expected a meter frame")
	}
	if frame.Channels != 2 {
		t.Fatalf("expected stereo frame, got %+v", frame)
	}
	if frame.Peak[0] != 0.5 || frame.Peak[1] != 0.25 {
		t.Fatalf("channel phase lost: peaks %v", frame.Peak)
	}

	// The accumulator resets after each take.
	if _, ok := w.takeMeter(); ok {
		t.Fatal("expected no frame without new samples")
	}
}

func TestFragmentSize(t *testing.T) {
	cases := []struct {
		name     string
		format   FrameFormat
		interval time.Duration
		want     int
	}{
		{"stereo 48k at 100ms", FrameFormat{48000, 2}, 100 * time.Millisecond, 19200},
		{"mono 8k at 10ms", FrameFormat{8000, 1}, 10 * time.Millisecond, 160},
		{"zero interval uses 100ms", FrameFormat{8000, 1}, 0, 1600},
		{"never below one frame", FrameFormat{1, 1}, time.Millisecond, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fragmentSize(tc.format, tc.interval); got != tc.want {
				t.Fatalf("expected %d bytes, got %d", tc.want, got)
			}
		})
	}
}

func appendSampleLE(b []byte, s int16) []byte {
	return append(b, byte(uint16(s)), byte(uint16(s)>>8))
}
