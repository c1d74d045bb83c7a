package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"reel/internal/audio"
	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/store"
)

// Coordinator owns the capture session state machine. At most one
// session is in acquiring or capturing at a time; starting a new
// capture fully tears down the previous one before touching the
// platform again. Volatile state is a cache over the durable session
// row: a freshly constructed coordinator re-derives its state from the
// store before answering its first query.
type Coordinator struct {
	cfg      *config.Config
	platform Platform
	store    *store.Store
	logger   *slog.Logger
	meters   *meterHub

	sleep func(context.Context, time.Duration) error

	// opMu serializes the heavyweight lifecycle transitions; mu guards
	// the session fields and is safe to take from the event pump.
	opMu sync.Mutex

	mu        sync.Mutex
	session   Session
	worker    *worker
	finalized chan struct{}
	pumpDone  chan struct{}
	restored  bool

	capturesStarted   atomic.Int64
	capturesFailed    atomic.Int64
	fragmentsAppended atomic.Int64
	bytesAppended     atomic.Int64
}

// Stats are cumulative counters over the coordinator's lifetime, read
// by the daemon's metrics registry.
type Stats struct {
	CapturesStarted   int64
	CapturesFailed    int64
	FragmentsAppended int64
	BytesAppended     int64
	MeterDrops        int64
}

// NewCoordinator wires the session coordinator against a capture
// platform and the recordings store.
func NewCoordinator(cfg *config.Config, st *store.Store, platform Platform, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		platform: platform,
		store:    st,
		logger:   logging.NewComponentLogger(logger, "capture"),
		meters:   newMeterHub(),
		sleep:    sleepContext,
		session:  Session{State: StateIdle},
	}
}

// SetSleep replaces the delay function used for settling and retry
// backoff. Tests inject instant sleeps.
func (c *Coordinator) SetSleep(fn func(context.Context, time.Duration) error) {
	if fn != nil {
		c.sleep = fn
	}
}

// Start tears down any previous session, lets the platform settle, and
// requests a fresh stream token. Contention is the only retryable
// failure: the acquisition is retried a bounded number of times with a
// growing delay, then reported as ErrAcquisitionFailed. Any other
// platform error is terminal immediately.
func (c *Coordinator) Start(ctx context.Context, target string) (StreamToken, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.teardown(ctx) {
		if err := c.sleep(ctx, c.cfg.SettleInterval()); err != nil {
			return StreamToken{}, err
		}
	}

	retries := c.cfg.Capture.AcquireRetries
	if retries < 0 {
		retries = 0
	}
	baseDelay := c.cfg.AcquireRetryDelay()

	var token StreamToken
	for attempt := 0; ; attempt++ {
		var err error
		token, err = c.platform.ResolveStream(ctx, target)
		if err == nil {
			break
		}
		if !services.Retryable(err) {
			return StreamToken{}, err
		}
		if attempt >= retries {
			return StreamToken{}, services.Wrap(services.ErrAcquisitionFailed, "capture", "start",
				fmt.Sprintf("stream still contended after %d attempts", attempt+1), err)
		}
		delay := baseDelay * time.Duration(attempt+1)
		c.logger.Warn("stream contended, retrying",
			logging.String(logging.FieldTarget, target),
			logging.Int("attempt", attempt+1),
			logging.Duration("delay", delay))
		if err := c.sleep(ctx, delay); err != nil {
			return StreamToken{}, err
		}
	}

	c.mu.Lock()
	c.session = Session{State: StateAcquiring, Target: target, Token: token}
	c.mu.Unlock()

	c.logger.Info("stream token issued",
		logging.String(logging.FieldTarget, target),
		logging.String(logging.FieldSessionID, token.ID))
	return token, nil
}

// StartWithToken hands the token to the capture worker and waits for
// its synchronous ack. On success the session is capturing and the
// durable active row is persisted; on failure the coordinator stays
// idle. Re-delivering the token of the already-running session is a
// no-op.
func (c *Coordinator) StartWithToken(ctx context.Context, token StreamToken) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.restoreLocked(ctx)
	switch c.session.State {
	case StateCapturing, StateStopping:
		same := token.ID != "" && token.ID == c.session.Token.ID
		c.mu.Unlock()
		if same {
			return nil
		}
		return services.Wrap(services.ErrValidation, "capture", "start", "capture already active", nil)
	case StateAcquiring:
		if c.session.Token.ID != "" && token.ID != c.session.Token.ID {
			c.mu.Unlock()
			return services.Wrap(services.ErrValidation, "capture", "start", "stream token does not match the pending session", nil)
		}
	}
	c.mu.Unlock()

	if err := token.Format.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "capture", "start", "stream token format rejected", err)
	}

	w := newWorker(c.platform, c.cfg.FragmentInterval(), c.cfg.MeterInterval(), c.logger)
	if err := w.begin(ctx, token); err != nil {
		c.mu.Lock()
		c.session = Session{State: StateIdle}
		c.mu.Unlock()
		return err
	}

	finalized := make(chan struct{})
	pumpDone := make(chan struct{})
	startedAt := time.Now().UTC()

	c.mu.Lock()
	c.worker = w
	c.finalized = finalized
	c.pumpDone = pumpDone
	c.session = Session{
		State:     StateCapturing,
		Target:    token.Target,
		Token:     token,
		StartedAt: startedAt,
	}
	c.mu.Unlock()

	go c.pump(w, finalized, pumpDone)

	if err := c.store.SaveActiveSession(ctx, &store.ActiveSession{
		Target:     token.Target,
		StartedAt:  startedAt,
		SampleRate: token.Format.SampleRate,
		Channels:   token.Format.Channels,
	}); err != nil {
		logging.WarnWithContext(c.logger, "active session row not persisted", "session_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a daemon restart will not know this capture was running"))
	}

	c.capturesStarted.Add(1)
	c.logger.Info("capture started",
		logging.String(logging.FieldTarget, token.Target),
		logging.String(logging.FieldSessionID, token.ID),
		logging.Int("sample_rate", token.Format.SampleRate),
		logging.Int("channels", token.Format.Channels))
	return nil
}

// AppendChunk appends one PCM fragment to the in-memory session buffer.
// Fragments stay in memory until Stop assembles and persists the whole
// take once; appending never performs a durable write.
func (c *Coordinator) AppendChunk(fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StateCapturing && c.session.State != StateStopping {
		return services.Wrap(services.ErrNoActiveSession, "capture", "append", "no capture in progress", nil)
	}
	c.session.fragments = append(c.session.fragments, fragment)
	c.session.bufferedBytes += int64(len(fragment))
	c.fragmentsAppended.Add(1)
	c.bytesAppended.Add(int64(len(fragment)))
	return nil
}

// Stats returns the coordinator's cumulative counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		CapturesStarted:   c.capturesStarted.Load(),
		CapturesFailed:    c.capturesFailed.Load(),
		FragmentsAppended: c.fragmentsAppended.Load(),
		BytesAppended:     c.bytesAppended.Load(),
		MeterDrops:        c.meters.drops.Load(),
	}
}

// Stop finalizes the worker, drains in-flight fragments, and persists
// the assembled take exactly once. Stopping with no active session is
// not an error: it returns an empty result and clears any stale durable
// row left behind by a crashed process.
func (c *Coordinator) Stop(ctx context.Context) (StopResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.restoreLocked(ctx)
	if c.session.State != StateCapturing || c.worker == nil {
		stale := c.session.State != StateIdle
		c.session = Session{State: StateIdle}
		c.mu.Unlock()
		if stale {
			if _, err := c.clearDurable(ctx); err != nil {
				c.logger.Warn("stale session row not cleared", logging.Error(err))
			}
		}
		return StopResult{}, nil
	}
	c.session.State = StateStopping
	w := c.worker
	finalized := c.finalized
	pumpDone := c.pumpDone
	c.mu.Unlock()

	w.finalize()
	select {
	case <-finalized:
	case <-pumpDone:
	case <-ctx.Done():
	}
	_ = c.sleep(ctx, c.cfg.SettleInterval())
	w.destroy()
	<-pumpDone

	c.mu.Lock()
	c.worker = nil
	c.finalized = nil
	c.pumpDone = nil
	result, err := c.persistLocked(ctx, "")
	c.mu.Unlock()
	if err != nil {
		return StopResult{}, err
	}

	c.logger.Info("capture stopped",
		logging.String(logging.FieldRecordingID, result.RecordingID),
		logging.Float64("duration_seconds", result.DurationSeconds))
	if result.Warning != "" {
		logging.WarnWithContext(c.logger, "capture stopped with warning", "short_recording",
			logging.String(logging.FieldRecordingID, result.RecordingID),
			logging.String(logging.FieldImpact, result.Warning))
	}
	return result, nil
}

// SnapshotState reconciles three signals: the in-memory state, live
// worker presence, and the durable session row. If any says a capture
// is active, the snapshot reports capturing.
func (c *Coordinator) SnapshotState(ctx context.Context) StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restoreLocked(ctx)

	capturing := c.session.State == StateCapturing || c.session.State == StateStopping
	target := c.session.Target
	startedAt := c.session.StartedAt

	if !capturing && c.worker != nil && c.worker.live() {
		capturing = true
	}
	if !capturing {
		if row, err := c.store.LoadActiveSession(ctx); err == nil && row != nil {
			capturing = true
			if target == "" {
				target = row.Target
			}
			if startedAt.IsZero() {
				startedAt = row.StartedAt
			}
		}
	}

	snap := StateSnapshot{
		Capturing:        capturing,
		HasBufferedAudio: len(c.session.fragments) > 0,
		Target:           target,
		StartedAt:        startedAt,
	}
	if capturing && !startedAt.IsZero() {
		snap.ElapsedSeconds = time.Since(startedAt).Seconds()
	}
	return snap
}

// Clear is the recovery hatch: unconditional teardown of worker,
// stream, buffer, and durable row regardless of state. Clearing an
// already-clean session succeeds.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.teardown(ctx) {
		c.logger.Info("capture session cleared")
	}
	return nil
}

// SubscribeMeter returns a channel of live meter frames and a cancel
// function. Frames are dropped, not queued, when the subscriber lags.
func (c *Coordinator) SubscribeMeter(buffer int) (<-chan MeterFrame, func()) {
	return c.meters.subscribe(buffer)
}

// MeterDrops reports how many meter frames subscribers have missed.
func (c *Coordinator) MeterDrops() int64 {
	return c.meters.drops.Load()
}

// pump applies worker events in arrival order until the event channel
// closes. Fragment order is capture order; finalize guarantees the
// final fragment precedes Finalized.
func (c *Coordinator) pump(w *worker, finalized chan struct{}, done chan struct{}) {
	defer close(done)
	acked := false
	for ev := range w.events() {
		switch e := ev.(type) {
		case FragmentReady:
			if err := c.AppendChunk(e.Data); err != nil && !errors.Is(err, services.ErrNoActiveSession) {
				c.logger.Warn("fragment dropped", logging.Error(err))
			}
		case Meter:
			c.meters.publish(e.Frame)
		case Finalized:
			if !acked {
				close(finalized)
				acked = true
			}
		case Failed:
			c.failed(e.Err)
		}
	}
}

// failed handles a mid-capture stream death: the fragments buffered so
// far are persisted best-effort, a partial recording beating a lost
// one, then the session clears.
func (c *Coordinator) failed(cause error) {
	c.mu.Lock()
	if c.session.State != StateCapturing {
		// A failure during stopping surfaces through the Stop path.
		c.mu.Unlock()
		return
	}
	c.capturesFailed.Add(1)
	logging.ErrorWithContext(c.logger, "capture stream failed", "stream_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, services.UserHint(cause)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.worker = nil
	c.finalized = nil
	c.pumpDone = nil
	result, err := c.persistLocked(ctx, "")
	c.mu.Unlock()

	if err != nil {
		logging.ErrorWithContext(c.logger, "partial recording not saved", "partial_save_failed", logging.Error(err))
		return
	}
	if result.RecordingID != "" {
		logging.WarnWithContext(c.logger, "partial recording saved after stream failure", "partial_save",
			logging.String(logging.FieldRecordingID, result.RecordingID),
			logging.Float64("duration_seconds", result.DurationSeconds),
			logging.String(logging.FieldImpact, "the recording ends where the stream died"))
	}
}

// teardown destroys the worker, drains the pump, discards the buffer,
// and clears the durable row. It reports whether there was anything to
// tear down.
func (c *Coordinator) teardown(ctx context.Context) bool {
	c.mu.Lock()
	c.restoreLocked(ctx)
	w := c.worker
	pumpDone := c.pumpDone
	buffered := len(c.session.fragments)
	bufferedBytes := c.session.bufferedBytes
	had := c.session.State != StateIdle || w != nil
	c.worker = nil
	c.finalized = nil
	c.pumpDone = nil
	c.session = Session{State: StateIdle}
	c.mu.Unlock()

	if buffered > 0 {
		c.logger.Warn("discarding buffered audio",
			logging.Int("fragments", buffered),
			logging.Int64("bytes", bufferedBytes))
	}
	if w != nil {
		w.destroy()
	}
	if pumpDone != nil {
		<-pumpDone
	}

	cleared, err := c.clearDurable(ctx)
	if err != nil {
		c.logger.Warn("session row not cleared", logging.Error(err))
	}
	return had || cleared
}

// persistLocked assembles the buffered fragments into a WAV payload,
// writes it to the recordings store exactly once, and clears all
// session state. The caller holds c.mu.
func (c *Coordinator) persistLocked(ctx context.Context, warning string) (StopResult, error) {
	format := c.session.Token.Format
	fragments := c.session.fragments
	startedAt := c.session.StartedAt
	c.session = Session{State: StateIdle}

	if format.Validate() != nil {
		// A restored session has no format and no buffer; there is
		// nothing to write.
		if _, err := c.clearDurable(ctx); err != nil {
			c.logger.Warn("session row not cleared", logging.Error(err))
		}
		return StopResult{}, nil
	}

	pcm := concatFragments(fragments)
	pcm = pcm[:len(pcm)-len(pcm)%format.BytesPerFrame()]
	frames := len(pcm) / format.BytesPerFrame()
	duration := float64(frames) / float64(format.SampleRate)

	if warning == "" {
		if min := c.cfg.MinDuration(); min > 0 && duration < min.Seconds() {
			warning = fmt.Sprintf("recording is %.2fs, shorter than the %.2fs minimum", duration, min.Seconds())
		}
	}

	payload, err := audio.WAVFromPCM16(pcm, format.SampleRate, format.Channels)
	if err != nil {
		if _, clearErr := c.clearDurable(ctx); clearErr != nil {
			c.logger.Warn("session row not cleared", logging.Error(clearErr))
		}
		return StopResult{}, services.Wrap(services.ErrValidation, "capture", "stop", "buffered audio could not be assembled", err)
	}

	rec := &store.Recording{
		ID:              uuid.NewString(),
		Name:            defaultRecordingName(startedAt),
		CreatedAt:       time.Now().UTC(),
		DurationSeconds: duration,
		SampleRate:      format.SampleRate,
		Channels:        format.Channels,
		Container:       "wav",
		SizeBytes:       int64(len(payload)),
	}
	if err := c.store.SaveRecording(ctx, rec, payload); err != nil {
		if _, clearErr := c.clearDurable(ctx); clearErr != nil {
			c.logger.Warn("session row not cleared", logging.Error(clearErr))
		}
		return StopResult{}, err
	}
	if err := c.store.ClearActiveSession(ctx); err != nil {
		c.logger.Warn("session row not cleared", logging.Error(err))
	}

	return StopResult{
		RecordingID:     rec.ID,
		DurationSeconds: duration,
		Warning:         warning,
	}, nil
}

// restoreLocked folds the durable session row into memory once, so a
// freshly constructed coordinator answers its first query consistently
// with what a previous process persisted. The caller holds c.mu.
func (c *Coordinator) restoreLocked(ctx context.Context) {
	if c.restored {
		return
	}
	c.restored = true
	row, err := c.store.LoadActiveSession(ctx)
	if err != nil {
		c.logger.Warn("session row not readable", logging.Error(err))
		return
	}
	if row == nil {
		return
	}
	c.session = Session{
		State:     StateCapturing,
		Target:    row.Target,
		StartedAt: row.StartedAt,
		Token: StreamToken{
			Target: row.Target,
			Format: FrameFormat{SampleRate: row.SampleRate, Channels: row.Channels},
		},
	}
	c.logger.Info("restored capture session from durable state",
		logging.String(logging.FieldTarget, row.Target),
		logging.String("started_at", row.StartedAt.Format(time.RFC3339)))
}

// clearDurable removes the active-session row if one exists, reporting
// whether it was present.
func (c *Coordinator) clearDurable(ctx context.Context) (bool, error) {
	row, err := c.store.LoadActiveSession(ctx)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}
	if err := c.store.ClearActiveSession(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func concatFragments(fragments [][]byte) []byte {
	total := 0
	for _, f := range fragments {
		total += len(f)
	}
	out := make([]byte, 0, total)
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out
}

func defaultRecordingName(startedAt time.Time) string {
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	return "capture-" + startedAt.UTC().Format("20060102-150405")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
