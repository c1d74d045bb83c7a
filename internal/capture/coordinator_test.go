package capture

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"reel/internal/services"
	"reel/internal/store"
	"reel/internal/testsupport"
)

// fakeStream is a scriptable Stream: tests push PCM through feed, Close
// ends it with io.EOF, fail ends it with an unexpected error.
type fakeStream struct {
	format FrameFormat

	feed   chan []byte
	closed chan struct{}
	failed chan struct{}

	closeOnce sync.Once
	failOnce  sync.Once

	pending []byte
}

func newFakeStream(format FrameFormat) *fakeStream {
	return &fakeStream{
		format: format,
		feed:   make(chan []byte),
		closed: make(chan struct{}),
		failed: make(chan struct{}),
	}
}

func (s *fakeStream) Format() FrameFormat { return s.format }

func (s *fakeStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case b := <-s.feed:
			s.pending = b
		case <-s.closed:
			return 0, io.EOF
		case <-s.failed:
			return 0, io.ErrUnexpectedEOF
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// fail simulates the stream dying without a finalize request.
func (s *fakeStream) fail() {
	s.failOnce.Do(func() { close(s.failed) })
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// push hands one PCM chunk to the reader and blocks until it is taken.
func (s *fakeStream) push(t testing.TB, b []byte) {
	t.Helper()
	select {
	case s.feed <- b:
	case <-s.closed:
		t.Fatal("push after stream closed")
	case <-time.After(5 * time.Second):
		t.Fatal("push timed out, reader is not consuming")
	}
}

// fakePlatform issues single-use tokens backed by fakeStreams. Resolve
// failures are scripted per call through resolveErrs.
type fakePlatform struct {
	mu          sync.Mutex
	format      FrameFormat
	resolveErrs []error
	resolves    int
	issued      map[string]*fakeStream
	opened      []*fakeStream
}

func newFakePlatform(format FrameFormat) *fakePlatform {
	return &fakePlatform{format: format, issued: make(map[string]*fakeStream)}
}

func (p *fakePlatform) ResolveStream(_ context.Context, target string) (StreamToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolves++
	if len(p.resolveErrs) > 0 {
		err := p.resolveErrs[0]
		p.resolveErrs = p.resolveErrs[1:]
		if err != nil {
			return StreamToken{}, err
		}
	}
	token := StreamToken{
		ID:       fmt.Sprintf("token-%d", p.resolves),
		Target:   target,
		Format:   p.format,
		IssuedAt: time.Now(),
	}
	p.issued[token.ID] = newFakeStream(p.format)
	return token, nil
}

func (p *fakePlatform) OpenStream(_ context.Context, token StreamToken) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stream, ok := p.issued[token.ID]
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "capture", "open", "stream token already redeemed", nil)
	}
	delete(p.issued, token.ID)
	p.opened = append(p.opened, stream)
	return stream, nil
}

func (p *fakePlatform) ListSources(context.Context) ([]Source, error) {
	return []Source{{ID: "fake.monitor", Description: "Fake Monitor", Monitor: true, Default: true}}, nil
}

func (p *fakePlatform) resolveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolves
}

func (p *fakePlatform) lastStream() *fakeStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.opened) == 0 {
		return nil
	}
	return p.opened[len(p.opened)-1]
}

func contention() error {
	return services.Wrap(services.ErrStreamContention, "platform", "resolve", "target busy", nil)
}

// constantPCM builds n mono/stereo frames where every sample has the
// given little-endian int16 value.
func constantPCM(format FrameFormat, frames int, value int16) []byte {
	b := make([]byte, 0, frames*format.BytesPerFrame())
	for i := 0; i < frames*format.Channels; i++ {
		b = binary.LittleEndian.AppendUint16(b, uint16(value))
	}
	return b
}

func waitFor(t testing.TB, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakePlatform, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	platform := newFakePlatform(FrameFormat{SampleRate: 8000, Channels: 1})
	c := NewCoordinator(cfg, st, platform, nil)
	return c, platform, st
}

func startCapture(t *testing.T, c *Coordinator, platform *fakePlatform, target string) *fakeStream {
	t.Helper()
	ctx := context.Background()
	token, err := c.Start(ctx, target)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.StartWithToken(ctx, token); err != nil {
		t.Fatalf("StartWithToken failed: %v", err)
	}
	return platform.lastStream()
}

func TestStartStopRoundTrip(t *testing.T) {
	c, platform, st := newTestCoordinator(t)
	ctx := context.Background()

	stream := startCapture(t, c, platform, "sink.monitor")

	// Fragment size at 8 kHz mono with the 10ms test cadence is 80
	// frames. Feed three full fragments of a known value.
	stream.push(t, constantPCM(stream.format, 240, 4096))
	waitFor(t, "fragments to buffer", func() bool { return c.Stats().FragmentsAppended == 3 })

	snap := c.SnapshotState(ctx)
	if !snap.Capturing || !snap.HasBufferedAudio {
		t.Fatalf("expected capturing snapshot with buffered audio, got %+v", snap)
	}
	if snap.Target != "sink.monitor" {
		t.Fatalf("unexpected snapshot target %q", snap.Target)
	}

	result, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if result.RecordingID == "" {
		t.Fatal("expected a recording ID")
	}
	if got, want := result.DurationSeconds, 240.0/8000.0; got != want {
		t.Fatalf("expected duration %v, got %v", want, got)
	}
	if result.Warning == "" {
		t.Fatal("expected short-recording warning for a 30ms take")
	}

	rec, err := st.GetRecording(ctx, result.RecordingID)
	if err != nil {
		t.Fatalf("GetRecording failed: %v", err)
	}
	if rec == nil {
		t.Fatal("recording row missing")
	}
	if rec.SampleRate != 8000 || rec.Channels != 1 || rec.Container != "wav" {
		t.Fatalf("unexpected recording metadata: %#v", rec)
	}

	payload, err := st.ReadPayload(ctx, result.RecordingID)
	if err != nil {
		t.Fatalf("ReadPayload failed: %v", err)
	}
	if !bytes.Equal(payload[44:], constantPCM(stream.format, 240, 4096)) {
		t.Fatal("payload PCM does not match the captured fragments")
	}

	row, err := st.LoadActiveSession(ctx)
	if err != nil {
		t.Fatalf("LoadActiveSession failed: %v", err)
	}
	if row != nil {
		t.Fatalf("expected active session row cleared, got %#v", row)
	}
	if snap := c.SnapshotState(ctx); snap.Capturing {
		t.Fatalf("expected idle snapshot after stop, got %+v", snap)
	}
	if !stream.isClosed() {
		t.Fatal("expected stream closed after stop")
	}
}

func TestAppendsStayInMemoryUntilStop(t *testing.T) {
	c, platform, st := newTestCoordinator(t)
	ctx := context.Background()

	startCapture(t, c, platform, "")

	var want []byte
	for i := 0; i < 3000; i++ {
		fragment := []byte{byte(i), byte(i >> 8)}
		if err := c.AppendChunk(fragment); err != nil {
			t.Fatalf("AppendChunk %d failed: %v", i, err)
		}
		want = append(want, fragment...)
	}

	recordings, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recordings) != 0 {
		t.Fatalf("expected no durable writes before stop, found %d recordings", len(recordings))
	}

	result, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if result.DurationSeconds != 3000.0/8000.0 {
		t.Fatalf("expected 0.375s duration, got %v", result.DurationSeconds)
	}
	if result.Warning != "" {
		t.Fatalf("unexpected warning for a 375ms take: %q", result.Warning)
	}

	payload, err := st.ReadPayload(ctx, result.RecordingID)
	if err != nil {
		t.Fatalf("ReadPayload failed: %v", err)
	}
	if !bytes.Equal(payload[44:], want) {
		t.Fatal("expected payload PCM to be every appended fragment in order")
	}
}

func TestStartRetriesContendedStream(t *testing.T) {
	c, platform, _ := newTestCoordinator(t)
	platform.resolveErrs = []error{contention(), contention()}

	var slept []time.Duration
	c.SetSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	token, err := c.Start(context.Background(), "busy.monitor")
	if err != nil {
		t.Fatalf("expected third attempt to succeed, got %v", err)
	}
	if token.ID == "" {
		t.Fatal("expected a stream token")
	}
	if got := platform.resolveCount(); got != 3 {
		t.Fatalf("expected 3 resolve attempts, got %d", got)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 backoff delays, got %v", slept)
	}
	if slept[1] != 2*slept[0] {
		t.Fatalf("expected growing delay, got %v", slept)
	}
}

func TestStartGivesUpAfterRetries(t *testing.T) {
	c, platform, _ := newTestCoordinator(t)
	platform.resolveErrs = []error{contention(), contention(), contention(), contention()}
	c.SetSleep(func(context.Context, time.Duration) error { return nil })

	_, err := c.Start(context.Background(), "busy.monitor")
	if !errors.Is(err, services.ErrAcquisitionFailed) {
		t.Fatalf("expected ErrAcquisitionFailed, got %v", err)
	}
	if got := platform.resolveCount(); got != 4 {
		t.Fatalf("expected 4 resolve attempts, got %d", got)
	}
}

func TestStartFailsFastOnTerminalError(t *testing.T) {
	c, platform, _ := newTestCoordinator(t)
	terminal := services.Wrap(services.ErrCapturePlatform, "platform", "resolve", "no such source", nil)
	platform.resolveErrs = []error{terminal}

	var slept []time.Duration
	c.SetSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	_, err := c.Start(context.Background(), "missing")
	if !errors.Is(err, services.ErrCapturePlatform) {
		t.Fatalf("expected terminal platform error, got %v", err)
	}
	if got := platform.resolveCount(); got != 1 {
		t.Fatalf("expected a single resolve attempt, got %d", got)
	}
	if len(slept) != 0 {
		t.Fatalf("expected no backoff delays, got %v", slept)
	}
}

func TestStartWithTokenRejectsSecondSession(t *testing.T) {
	c, platform, _ := newTestCoordinator(t)
	ctx := context.Background()

	token, err := c.Start(ctx, "")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.StartWithToken(ctx, token); err != nil {
		t.Fatalf("StartWithToken failed: %v", err)
	}

	// Redelivering the running session's token is a no-op.
	if err := c.StartWithToken(ctx, token); err != nil {
		t.Fatalf("expected redelivery of the same token to succeed, got %v", err)
	}
	if len(platform.opened) != 1 {
		t.Fatalf("expected a single stream open, got %d", len(platform.opened))
	}

	other := token
	other.ID = "token-other"
	if err := c.StartWithToken(ctx, other); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for a second session, got %v", err)
	}

	if _, err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestStartWithTokenRejectsBadFormat(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	token := StreamToken{
		ID:     "token-bad",
		Format: FrameFormat{SampleRate: 8000, Channels: 5},
	}
	if err := c.StartWithToken(context.Background(), token); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if snap := c.SnapshotState(context.Background()); snap.Capturing {
		t.Fatal("expected coordinator to stay idle")
	}
}

func TestStopWithoutSession(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	result, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if result.RecordingID != "" || result.DurationSeconds != 0 || result.Warning != "" {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestStartTearsDownPreviousSession(t *testing.T) {
	c, platform, st := newTestCoordinator(t)
	ctx := context.Background()

	first := startCapture(t, c, platform, "first.monitor")
	first.push(t, constantPCM(first.format, 80, 512))
	waitFor(t, "first fragment to buffer", func() bool { return c.Stats().FragmentsAppended == 1 })

	var slept []time.Duration
	c.SetSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	second := startCapture(t, c, platform, "second.monitor")
	if !first.isClosed() {
		t.Fatal("expected the first stream to be closed")
	}
	if second == first {
		t.Fatal("expected a fresh stream for the second session")
	}
	if len(slept) == 0 || slept[0] != c.cfg.SettleInterval() {
		t.Fatalf("expected a settle delay before reacquiring, got %v", slept)
	}

	snap := c.SnapshotState(ctx)
	if !snap.Capturing || snap.Target != "second.monitor" {
		t.Fatalf("unexpected snapshot after restart: %+v", snap)
	}
	if snap.HasBufferedAudio {
		t.Fatal("expected the first session's buffer to be discarded")
	}

	// The first session's audio never reaches the store.
	result, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	payload, err := st.ReadPayload(ctx, result.RecordingID)
	if err != nil {
		t.Fatalf("ReadPayload failed: %v", err)
	}
	if len(payload) != 44 {
		t.Fatalf("expected an empty second recording, got %d payload bytes", len(payload))
	}
}

func TestClearDiscardsEverything(t *testing.T) {
	c, platform, st := newTestCoordinator(t)
	ctx := context.Background()

	stream := startCapture(t, c, platform, "sink.monitor")
	stream.push(t, constantPCM(stream.format, 160, 1024))
	waitFor(t, "fragments to buffer", func() bool { return c.Stats().FragmentsAppended == 2 })

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if !stream.isClosed() {
		t.Fatal("expected stream closed after clear")
	}

	recordings, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recordings) != 0 {
		t.Fatalf("expected no recordings after clear, got %d", len(recordings))
	}
	row, err := st.LoadActiveSession(ctx)
	if err != nil {
		t.Fatalf("LoadActiveSession failed: %v", err)
	}
	if row != nil {
		t.Fatal("expected active session row cleared")
	}
	if snap := c.SnapshotState(ctx); snap.Capturing || snap.HasBufferedAudio {
		t.Fatalf("expected idle snapshot, got %+v", snap)
	}

	// Clearing an already-clean coordinator succeeds.
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear on idle coordinator failed: %v", err)
	}
}

func TestStreamFailureSavesPartialRecording(t *testing.T) {
	c, platform, st := newTestCoordinator(t)
	ctx := context.Background()

	stream := startCapture(t, c, platform, "sink.monitor")
	stream.push(t, constantPCM(stream.format, 160, 2048))
	waitFor(t, "fragments to buffer", func() bool { return c.Stats().FragmentsAppended == 2 })

	stream.fail()
	waitFor(t, "partial recording to persist", func() bool {
		recordings, err := st.List(ctx)
		return err == nil && len(recordings) == 1
	})

	recordings, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	rec := recordings[0]
	if got, want := rec.DurationSeconds, 160.0/8000.0; got != want {
		t.Fatalf("expected partial duration %v, got %v", want, got)
	}
	if c.Stats().CapturesFailed != 1 {
		t.Fatalf("expected one failed capture, got %d", c.Stats().CapturesFailed)
	}

	waitFor(t, "session row to clear", func() bool {
		row, err := st.LoadActiveSession(ctx)
		return err == nil && row == nil
	})
	if snap := c.SnapshotState(ctx); snap.Capturing {
		t.Fatalf("expected idle snapshot after failure, got %+v", snap)
	}

	// A later stop finds nothing to do.
	result, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if result.RecordingID != "" {
		t.Fatalf("expected empty stop result, got %+v", result)
	}
}

func TestSnapshotRestoresDurableSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	startedAt := time.Now().UTC().Add(-3 * time.Second)
	if err := st.SaveActiveSession(ctx, &store.ActiveSession{
		Target:     "sink.monitor",
		StartedAt:  startedAt,
		SampleRate: 48000,
		Channels:   2,
	}); err != nil {
		t.Fatalf("SaveActiveSession failed: %v", err)
	}

	// A freshly constructed coordinator knows about the session the
	// previous process persisted.
	c := NewCoordinator(cfg, st, newFakePlatform(FrameFormat{SampleRate: 48000, Channels: 2}), nil)
	snap := c.SnapshotState(ctx)
	if !snap.Capturing {
		t.Fatalf("expected restored snapshot to report capturing, got %+v", snap)
	}
	if snap.Target != "sink.monitor" {
		t.Fatalf("unexpected restored target %q", snap.Target)
	}
	if snap.ElapsedSeconds < 2 {
		t.Fatalf("expected elapsed to count from the persisted start, got %v", snap.ElapsedSeconds)
	}

	// There is no worker and no buffer: stopping clears the ghost.
	result, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if result.RecordingID != "" {
		t.Fatalf("expected empty result for restored ghost session, got %+v", result)
	}
	row, err := st.LoadActiveSession(ctx)
	if err != nil {
		t.Fatalf("LoadActiveSession failed: %v", err)
	}
	if row != nil {
		t.Fatal("expected durable session row cleared")
	}
	if snap := c.SnapshotState(ctx); snap.Capturing {
		t.Fatalf("expected idle snapshot after stop, got %+v", snap)
	}
}

func TestAppendChunkRequiresSession(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	if err := c.AppendChunk(nil); err != nil {
		t.Fatalf("expected empty append to be a no-op, got %v", err)
	}
	if err := c.AppendChunk([]byte{1, 2}); !errors.Is(err, services.ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestMeterFramesReachSubscribers(t *testing.T) {
	c, platform, _ := newTestCoordinator(t)
	ctx := context.Background()

	frames, cancel := c.SubscribeMeter(8)
	defer cancel()

	stream := startCapture(t, c, platform, "sink.monitor")
	defer func() { _, _ = c.Stop(ctx) }()

	// Half-scale constant signal: peak and RMS both land at 0.5.
	stream.push(t, constantPCM(stream.format, 160, 16384))

	select {
	case frame := <-frames:
		if frame.Channels != 1 {
			t.Fatalf("expected mono frame, got %+v", frame)
		}
		if frame.Peak[0] < 0.49 || frame.Peak[0] > 0.51 {
			t.Fatalf("expected peak near 0.5, got %v", frame.Peak[0])
		}
		if frame.RMS[0] < 0.49 || frame.RMS[0] > 0.51 {
			t.Fatalf("expected rms near 0.5, got %v", frame.RMS[0])
		}
		if frame.Elapsed < 0 {
			t.Fatalf("negative elapsed: %v", frame.Elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a meter frame")
	}
}
