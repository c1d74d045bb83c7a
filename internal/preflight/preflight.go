package preflight

import (
	"context"

	"reel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config: directory
// access for every configured path, database writability, and the ffmpeg
// binary with version capture.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Recordings directory", cfg.Paths.RecordingsDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDatabaseWritable(cfg.DatabasePath()),
		CheckFFmpeg(ctx, cfg.FFmpegBinary()),
	}
}
