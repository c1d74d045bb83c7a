package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"reel/internal/config"
	"reel/internal/deps"
	"reel/internal/services/ffmpeg"
)

const ffmpegProbeTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that a directory exists and is readable,
// writable, and traversable by the current process.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("%s (error: does not exist)", path),
		}
	}
	if !info.IsDir() {
		return Result{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("%s (error: is not a directory)", path),
		}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err),
		}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (read/write ok)", path),
	}
}

// CheckDatabaseWritable verifies the recording database can be opened for
// writing. The file is created if absent; sqlite treats an empty file as a
// fresh database so the probe never truncates existing data.
func CheckDatabaseWritable(path string) Result {
	name := "Recording database"
	if path == "" {
		return Result{Name: name, Passed: false, Detail: "no database path configured"}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{
				Name:   name,
				Passed: false,
				Detail: fmt.Sprintf("%s (error: %v)", path, err),
			}
		}
	}
	handle, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return Result{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("%s (error: %v)", path, err),
		}
	}
	if err := handle.Close(); err != nil {
		return Result{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("%s (error: %v)", path, err),
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", path)}
}

// CheckFFmpeg verifies the ffmpeg binary resolves and responds to a version
// probe. Capture transport and mp3/ogg encoding both depend on it.
func CheckFFmpeg(ctx context.Context, binary string) Result {
	name := "FFmpeg"
	resolved := deps.ResolveFFmpegPath(binary)
	client, err := ffmpeg.New(resolved)
	if err != nil {
		return Result{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("%s (error: %v)", resolved, err),
		}
	}
	probeCtx, cancel := context.WithTimeout(ctx, ffmpegProbeTimeout)
	defer cancel()
	version, err := client.Version(probeCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{
				Name:   name,
				Passed: false,
				Detail: fmt.Sprintf("%s (error: version probe timed out)", resolved),
			}
		}
		return Result{
			Name:   name,
			Passed: false,
			Detail: fmt.Sprintf("%s (error: %v)", resolved, err),
		}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (version %s)", resolved, version),
	}
}

// CheckSystemDeps reports the availability of external binaries without
// probing them. Used by status surfaces where a fast snapshot matters more
// than version details.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	ffmpegBinary := "ffmpeg"
	if cfg != nil {
		ffmpegBinary = cfg.FFmpegBinary()
	}
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for capture transport and mp3/ogg encoding",
		},
		{
			Name:        "PulseAudio CLI",
			Command:     "pactl",
			Description: "Discovers PulseAudio capture sources",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}
