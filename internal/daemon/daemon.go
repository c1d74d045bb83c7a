package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reel/internal/api"
	"reel/internal/capture"
	"reel/internal/config"
	"reel/internal/deps"
	"reel/internal/logging"
	"reel/internal/preflight"
	"reel/internal/store"
	"reel/internal/transcode"
)

// stopSaveTimeout bounds the capture save attempted during shutdown.
const stopSaveTimeout = 10 * time.Second

// Daemon coordinates the capture lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *store.Store
	coordinator *capture.Coordinator
	engine      *transcode.Engine
	api         *apiServer
	version     string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Version      string
	StartedAt    time.Time
	DatabasePath string
	LockFilePath string
	Capture      capture.StateSnapshot
	Store        store.Stats
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, coordinator *capture.Coordinator, version string) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || coordinator == nil {
		return nil, errors.New("daemon requires config, store, logger, and capture coordinator")
	}

	engine, err := api.BuildEngine(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build transcode engine: %w", err)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		coordinator: coordinator,
		engine:      engine,
		version:     strings.TrimSpace(version),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}

	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, fmt.Errorf("build api server: %w", err)
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the daemon lock, runs preflight checks, and reconciles
// any capture session left behind by a previous process.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reel daemon instance is already running")
	}

	if err := d.runPreflightChecks(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.startedAt = time.Now().UTC()
	d.running.Store(true)

	if err := d.api.start(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "api server not started", "api_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the api_bind address in the configuration"),
			logging.String(logging.FieldImpact, "HTTP status, export, and meter endpoints are unavailable"),
		)
	}

	// A fresh process holds no live stream, so a capturing snapshot here
	// can only come from the durable session row of an interrupted run.
	snapshot := d.coordinator.SnapshotState(d.ctx)
	if snapshot.Capturing {
		logging.WarnWithContext(d.logger, "previous capture session was interrupted", "session_interrupted",
			logging.String(logging.FieldTarget, snapshot.Target),
			logging.String(logging.FieldErrorHint, "start a new capture or run clear to reset"),
			logging.String(logging.FieldImpact, "audio buffered by the previous process was not recovered"),
		)
	}

	d.logger.Info("reel daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop halts any active capture and releases the daemon lock. Buffered
// audio is stopped and saved so it survives the shutdown.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopSaveTimeout)
	snapshot := d.coordinator.SnapshotState(stopCtx)
	if snapshot.Capturing || snapshot.HasBufferedAudio {
		result, err := d.coordinator.Stop(stopCtx)
		switch {
		case err != nil:
			logging.WarnWithContext(d.logger, "capture not saved during shutdown", "shutdown_save_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "buffered audio from this session is lost"),
			)
		case result.RecordingID != "":
			d.logger.Info("capture saved during shutdown",
				logging.String(logging.FieldRecordingID, result.RecordingID),
				logging.Float64("duration_seconds", result.DurationSeconds),
				logging.String(logging.FieldEventType, "shutdown_save"),
			)
		}
	}
	cancelStop()

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("reel daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// StartCapture resolves a stream for target and returns its token.
func (d *Daemon) StartCapture(ctx context.Context, target string) (capture.StreamToken, error) {
	if d.coordinator == nil {
		return capture.StreamToken{}, errors.New("capture coordinator unavailable")
	}
	return d.coordinator.Start(ctx, target)
}

// StartCaptureWithToken hands a previously issued token to the capture worker.
func (d *Daemon) StartCaptureWithToken(ctx context.Context, token capture.StreamToken) error {
	if d.coordinator == nil {
		return errors.New("capture coordinator unavailable")
	}
	return d.coordinator.StartWithToken(ctx, token)
}

// StopCapture finalizes the active capture and persists the recording.
func (d *Daemon) StopCapture(ctx context.Context) (capture.StopResult, error) {
	if d.coordinator == nil {
		return capture.StopResult{}, errors.New("capture coordinator unavailable")
	}
	return d.coordinator.Stop(ctx)
}

// CaptureState reports the reconciled capture session state.
func (d *Daemon) CaptureState(ctx context.Context) capture.StateSnapshot {
	if d.coordinator == nil {
		return capture.StateSnapshot{}
	}
	return d.coordinator.SnapshotState(ctx)
}

// ClearCapture discards the session buffer and durable row unconditionally.
func (d *Daemon) ClearCapture(ctx context.Context) error {
	if d.coordinator == nil {
		return errors.New("capture coordinator unavailable")
	}
	return d.coordinator.Clear(ctx)
}

// SubscribeMeter returns a channel of live meter frames and its cancel func.
func (d *Daemon) SubscribeMeter(buffer int) (<-chan capture.MeterFrame, func()) {
	return d.coordinator.SubscribeMeter(buffer)
}

// ListRecordings returns all stored recordings, newest first.
func (d *Daemon) ListRecordings(ctx context.Context) ([]*store.Recording, error) {
	if d.store == nil {
		return nil, errors.New("recordings store unavailable")
	}
	return d.store.List(ctx)
}

// GetRecording loads one recording's metadata.
func (d *Daemon) GetRecording(ctx context.Context, id string) (*store.Recording, error) {
	if d.store == nil {
		return nil, errors.New("recordings store unavailable")
	}
	return d.store.GetRecording(ctx, id)
}

// RemoveRecordings deletes the given recordings, reporting how many existed.
func (d *Daemon) RemoveRecordings(ctx context.Context, ids []string) (int, error) {
	if d.store == nil {
		return 0, errors.New("recordings store unavailable")
	}
	removed := 0
	for _, id := range ids {
		ok, err := d.store.Remove(ctx, id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// RenameRecording updates a recording's display name, reporting whether it existed.
func (d *Daemon) RenameRecording(ctx context.Context, id, name string) (bool, error) {
	if d.store == nil {
		return false, errors.New("recordings store unavailable")
	}
	return d.store.Rename(ctx, id, name)
}

// TranscodeRecording runs the engine over a stored payload and returns
// the recording metadata alongside the converted bytes.
func (d *Daemon) TranscodeRecording(ctx context.Context, id string, req transcode.Request) (*store.Recording, *transcode.Result, error) {
	if d.store == nil {
		return nil, nil, errors.New("recordings store unavailable")
	}
	rec, err := d.store.GetRecording(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	payload, err := d.store.ReadPayload(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	result, err := d.engine.Convert(ctx, payload, req)
	if err != nil {
		return nil, nil, err
	}
	return rec, result, nil
}

// Dependencies reports the availability of external binaries.
func (d *Daemon) Dependencies() []deps.Status {
	return preflight.CheckSystemDeps(d.cfg)
}

// APIAddr reports the HTTP API listen address, empty when disabled or
// not yet started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Version:      d.version,
		StartedAt:    d.startedAt,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Capture:      d.CaptureState(ctx),
		Dependencies: d.Dependencies(),
	}
	if summary, err := d.store.Summarize(ctx); err == nil {
		status.Store = summary
	}
	return status
}

func (d *Daemon) runPreflightChecks(ctx context.Context) error {
	results := preflight.RunAll(ctx, d.cfg)

	var failures []string
	for _, r := range results {
		if r.Passed {
			d.logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		d.logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}

	if len(failures) > 0 {
		return fmt.Errorf("preflight checks failed: %s", strings.Join(failures, "; "))
	}
	return nil
}
