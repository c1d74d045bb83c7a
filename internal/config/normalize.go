package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeTranscode()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RecordingsDir) == "" {
		c.Paths.RecordingsDir = filepath.Join(c.Paths.DataDir, "recordings")
	}
	if c.Paths.RecordingsDir, err = expandPath(c.Paths.RecordingsDir); err != nil {
		return fmt.Errorf("paths.recordings_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("REEL_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.Source = strings.TrimSpace(c.Capture.Source)
	if c.Capture.Source == "" {
		if value, ok := os.LookupEnv("REEL_CAPTURE_SOURCE"); ok {
			c.Capture.Source = strings.TrimSpace(value)
		}
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = defaultSampleRate
	}
	if c.Capture.Channels == 0 {
		c.Capture.Channels = defaultChannels
	}
	if c.Capture.FragmentMillis == 0 {
		c.Capture.FragmentMillis = defaultFragmentMillis
	}
	if c.Capture.MeterHz == 0 {
		c.Capture.MeterHz = defaultMeterHz
	}
	if c.Capture.SettleMillis == 0 {
		c.Capture.SettleMillis = defaultSettleMillis
	}
	if c.Capture.AcquireRetryDelayMillis == 0 {
		c.Capture.AcquireRetryDelayMillis = defaultAcquireRetryDelay
	}
	if c.Capture.MinDurationMillis == 0 {
		c.Capture.MinDurationMillis = defaultMinDurationMillis
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpeg = strings.TrimSpace(c.Transcode.FFmpeg)
	if c.Transcode.FFmpeg == "" {
		c.Transcode.FFmpeg = "ffmpeg"
	}
	if c.Transcode.MP3BitrateKbps == 0 {
		c.Transcode.MP3BitrateKbps = defaultMP3BitrateKbps
	}
	if c.Transcode.OggBitrateKbps == 0 {
		c.Transcode.OggBitrateKbps = defaultOggBitrateKbps
	}
	if c.Transcode.NormalizeCeiling == 0 {
		c.Transcode.NormalizeCeiling = defaultNormalizeCeiling
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
