package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	RecordingsDir string `toml:"recordings_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
}

// Capture contains configuration for live capture sessions.
type Capture struct {
	// Source is the default capture target. Empty selects the platform
	// default source.
	Source                  string `toml:"source"`
	SampleRate              int    `toml:"sample_rate"`
	Channels                int    `toml:"channels"`
	FragmentMillis          int    `toml:"fragment_millis"`
	MeterHz                 int    `toml:"meter_hz"`
	SettleMillis            int    `toml:"settle_millis"`
	AcquireRetries          int    `toml:"acquire_retries"`
	AcquireRetryDelayMillis int    `toml:"acquire_retry_delay_millis"`
	MinDurationMillis       int    `toml:"min_duration_millis"`
}

// Transcode contains configuration for format conversion.
type Transcode struct {
	FFmpeg           string  `toml:"ffmpeg"`
	MP3BitrateKbps   int     `toml:"mp3_bitrate_kbps"`
	OggBitrateKbps   int     `toml:"ogg_bitrate_kbps"`
	NormalizeCeiling float64 `toml:"normalize_ceiling"`
}

// Store contains configuration for the recordings store.
type Store struct {
	CompressPayloads bool `toml:"compress_payloads"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reel.
//
// Configuration sections by subsystem:
//   - Paths: directories, API bind address, and API token
//   - Capture: session timing, retry policy, and stream format
//   - Transcode: ffmpeg binary and encoder settings
//   - Store: recording payload persistence options
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Capture   Capture   `toml:"capture"`
	Transcode Transcode `toml:"transcode"`
	Store     Store     `toml:"store"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. A .env file in the working
// directory is applied first so its variables feed the environment overrides;
// a missing .env is not an error.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.RecordingsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the unix socket the daemon listens on.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "reel.sock")
}

// DatabasePath returns the sqlite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "reel.db")
}

// PIDFilePath returns the daemon pid file location.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.Paths.LogDir, "reeld.pid")
}

// LockPath returns the single-instance daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reeld.lock")
}

// FFmpegBinary returns the ffmpeg executable used for capture and encoding.
func (c *Config) FFmpegBinary() string {
	if b := strings.TrimSpace(c.Transcode.FFmpeg); b != "" {
		return b
	}
	return "ffmpeg"
}

// FragmentInterval returns the cadence at which the capture worker emits
// encoded fragments.
func (c *Config) FragmentInterval() time.Duration {
	return time.Duration(c.Capture.FragmentMillis) * time.Millisecond
}

// MeterInterval returns the cadence of level meter frames.
func (c *Config) MeterInterval() time.Duration {
	if c.Capture.MeterHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Capture.MeterHz)
}

// SettleInterval returns the fixed wait applied around session teardown so the
// platform can release the stream.
func (c *Config) SettleInterval() time.Duration {
	return time.Duration(c.Capture.SettleMillis) * time.Millisecond
}

// AcquireRetryDelay returns the base delay between acquisition attempts.
func (c *Config) AcquireRetryDelay() time.Duration {
	return time.Duration(c.Capture.AcquireRetryDelayMillis) * time.Millisecond
}

// MinDuration returns the shortest recording saved without a warning.
func (c *Config) MinDuration() time.Duration {
	return time.Duration(c.Capture.MinDurationMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
