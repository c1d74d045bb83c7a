package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reel/internal/capture"
	"reel/internal/services"
)

var commandContext = exec.CommandContext

const defaultPactlBinary = "pactl"

// Platform resolves and opens PulseAudio capture streams through ffmpeg.
// Tokens issued by ResolveStream are single-use and tracked in memory.
type Platform struct {
	binary string
	pactl  string
	format capture.FrameFormat
	exec   Executor

	mu     sync.Mutex
	issued map[string]capture.StreamToken
}

// PlatformOption configures the platform.
type PlatformOption func(*Platform)

// WithPactl overrides the pactl binary used for source discovery.
func WithPactl(binary string) PlatformOption {
	return func(p *Platform) {
		if binary != "" {
			p.pactl = binary
		}
	}
}

// WithPlatformExecutor injects a custom executor (primarily for tests).
func WithPlatformExecutor(exec Executor) PlatformOption {
	return func(p *Platform) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// NewPlatform constructs a PulseAudio capture platform that delivers PCM in
// the given format.
func NewPlatform(binary string, format capture.FrameFormat, opts ...PlatformOption) (*Platform, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("capture format: %w", err)
	}
	platform := &Platform{
		binary: binary,
		pactl:  defaultPactlBinary,
		format: format,
		exec:   commandExecutor{},
		issued: make(map[string]capture.StreamToken),
	}
	for _, opt := range opts {
		opt(platform)
	}
	return platform, nil
}

// ResolveStream maps a requested target onto a concrete PulseAudio source,
// verifies the source can deliver audio right now, and issues a single-use
// token for opening it.
func (p *Platform) ResolveStream(ctx context.Context, target string) (capture.StreamToken, error) {
	source, err := p.resolveSource(ctx, target)
	if err != nil {
		return capture.StreamToken{}, err
	}
	if err := p.probeSource(ctx, source); err != nil {
		return capture.StreamToken{}, err
	}
	token := capture.StreamToken{
		ID:       uuid.NewString(),
		Target:   source,
		Format:   p.format,
		IssuedAt: time.Now().UTC(),
	}
	p.mu.Lock()
	p.issued[token.ID] = token
	p.mu.Unlock()
	return token, nil
}

// OpenStream redeems a token and attaches a long-lived ffmpeg process to
// the resolved source. The returned stream outlives the calling request;
// ctx only gates startup, teardown belongs to Close.
func (p *Platform) OpenStream(ctx context.Context, token capture.StreamToken) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	_, ok := p.issued[token.ID]
	if ok {
		delete(p.issued, token.ID)
	}
	p.mu.Unlock()
	if !ok {
		return nil, services.Wrap(services.ErrAcquisitionFailed, "ffmpeg", "open stream", "stream token unknown or already redeemed", nil)
	}
	if err := token.Format.Validate(); err != nil {
		return nil, services.Wrap(services.ErrAcquisitionFailed, "ffmpeg", "open stream", "stream token format", err)
	}

	cmd := commandContext(context.Background(), p.binary, captureArgs(token.Target, token.Format)...) //nolint:gosec
	stderr := &tailBuffer{max: 2048}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrCapturePlatform, "ffmpeg", "open stream", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrCapturePlatform, "ffmpeg", "open stream", "start capture process", err)
	}
	return &pulseStream{
		format: token.Format,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// ListSources enumerates the host's capture sources via pactl. An empty
// slice with a nil error means pactl answered but reported nothing.
func (p *Platform) ListSources(ctx context.Context) ([]capture.Source, error) {
	out, err := p.exec.Run(ctx, p.pactl, []string{"--format=json", "list", "sources"}, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrCapturePlatform, "pactl", "list sources", "", err)
	}
	sources, err := parseSourceList(out)
	if err != nil {
		return nil, services.Wrap(services.ErrCapturePlatform, "pactl", "list sources", "parse output", err)
	}
	if def, err := p.defaultSource(ctx); err == nil && def != "" {
		for i := range sources {
			if sources[i].ID == def {
				sources[i].Default = true
			}
		}
	}
	return sources, nil
}

func (p *Platform) resolveSource(ctx context.Context, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target != "" && target != "default" {
		sources, err := p.ListSources(ctx)
		if err != nil {
			return "", err
		}
		for _, s := range sources {
			if s.ID == target {
				return s.ID, nil
			}
		}
		return "", services.Wrap(services.ErrAcquisitionFailed, "ffmpeg", "resolve source", fmt.Sprintf("capture source %q not found", target), nil)
	}

	if def, err := p.defaultSource(ctx); err == nil && def != "" {
		return def, nil
	}
	sources, err := p.ListSources(ctx)
	if err != nil {
		return "", err
	}
	for _, s := range sources {
		if s.Monitor {
			return s.ID, nil
		}
	}
	if len(sources) > 0 {
		return sources[0].ID, nil
	}
	return "", services.Wrap(services.ErrAcquisitionFailed, "ffmpeg", "resolve source", "no capture sources available", nil)
}

func (p *Platform) defaultSource(ctx context.Context) (string, error) {
	out, err := p.exec.Run(ctx, p.pactl, []string{"get-default-source"}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// probeSource opens the source for a moment and discards the audio. This
// surfaces busy devices before a session commits to the target.
func (p *Platform) probeSource(ctx context.Context, source string) error {
	if _, err := p.exec.Run(ctx, p.binary, probeArgs(source), nil); err != nil {
		return classifyCaptureError(err, source)
	}
	return nil
}

func probeArgs(source string) []string {
	return []string{"-v", "error", "-hide_banner", "-f", "pulse", "-i", source, "-t", "0.05", "-f", "null", "-"}
}

func captureArgs(source string, format capture.FrameFormat) []string {
	return []string{
		"-v", "error", "-hide_banner",
		"-f", "pulse",
		"-i", source,
		"-f", "s16le",
		"-ar", strconv.Itoa(format.SampleRate),
		"-ac", strconv.Itoa(format.Channels),
		"pipe:1",
	}
}

func classifyCaptureError(err error, source string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"device or resource busy", "resource busy", "in use by another", "access denied by another client"} {
		if strings.Contains(msg, marker) {
			return services.Wrap(services.ErrStreamContention, "ffmpeg", "acquire", "source "+source, err)
		}
	}
	return services.Wrap(services.ErrAcquisitionFailed, "ffmpeg", "acquire", "source "+source, err)
}

type pactlSource struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	State       string            `json:"state"`
	Properties  map[string]string `json:"properties"`
}

func parseSourceList(data []byte) ([]capture.Source, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	var entries []pactlSource
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, err
	}
	sources := make([]capture.Source, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		monitor := strings.HasSuffix(entry.Name, ".monitor")
		if class, ok := entry.Properties["device.class"]; ok && strings.EqualFold(class, "monitor") {
			monitor = true
		}
		sources = append(sources, capture.Source{
			ID:          entry.Name,
			Description: entry.Description,
			Monitor:     monitor,
			State:       strings.ToUpper(strings.TrimSpace(entry.State)),
		})
	}
	return sources, nil
}

// pulseStream is the live PCM stream backed by a running ffmpeg process.
type pulseStream struct {
	format capture.FrameFormat
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer

	mu       sync.Mutex
	closed   bool
	waitOnce sync.Once
	waitErr  error
}

func (s *pulseStream) Format() capture.FrameFormat {
	return s.format
}

func (s *pulseStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err == nil {
		return n, nil
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return n, io.EOF
	}
	waitErr := s.wait()
	message := "capture stream ended unexpectedly"
	if detail := s.stderr.String(); detail != "" {
		message = message + ": " + stderrTail(detail)
	}
	return n, services.Wrap(services.ErrCapturePlatform, "ffmpeg", "capture", message, waitErr)
}

func (s *pulseStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.stdout.Close()
	s.wait()
	return nil
}

func (s *pulseStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// tailBuffer keeps the last max bytes written, guarding against a noisy
// process growing the diagnostic buffer without bound.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if b.max > 0 && len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}

var _ capture.Platform = (*Platform)(nil)
var _ capture.Stream = (*pulseStream)(nil)
