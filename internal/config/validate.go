package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.SampleRate < 8000 || c.Capture.SampleRate > 192000 {
		return errors.New("capture.sample_rate must be between 8000 and 192000")
	}
	if c.Capture.Channels != 1 && c.Capture.Channels != 2 {
		return errors.New("capture.channels must be 1 (mono) or 2 (stereo)")
	}
	if err := ensurePositiveMap(map[string]int{
		"capture.fragment_millis":            c.Capture.FragmentMillis,
		"capture.meter_hz":                   c.Capture.MeterHz,
		"capture.settle_millis":              c.Capture.SettleMillis,
		"capture.acquire_retry_delay_millis": c.Capture.AcquireRetryDelayMillis,
		"capture.min_duration_millis":        c.Capture.MinDurationMillis,
	}); err != nil {
		return err
	}
	if c.Capture.AcquireRetries < 0 {
		return errors.New("capture.acquire_retries must be >= 0")
	}
	if c.Capture.MeterHz > 240 {
		return errors.New("capture.meter_hz must be <= 240")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.MP3BitrateKbps < 32 || c.Transcode.MP3BitrateKbps > 320 {
		return errors.New("transcode.mp3_bitrate_kbps must be between 32 and 320")
	}
	if c.Transcode.OggBitrateKbps < 32 || c.Transcode.OggBitrateKbps > 500 {
		return errors.New("transcode.ogg_bitrate_kbps must be between 32 and 500")
	}
	if c.Transcode.NormalizeCeiling <= 0 || c.Transcode.NormalizeCeiling > 1 {
		return errors.New("transcode.normalize_ceiling must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
