package config

const (
	defaultDataDir           = "~/.local/share/reel"
	defaultLogDir            = "~/.local/share/reel/logs"
	defaultAPIBind           = "127.0.0.1:7470"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	defaultSampleRate        = 48000
	defaultChannels          = 2
	defaultFragmentMillis    = 100
	defaultMeterHz           = 60
	defaultSettleMillis      = 500
	defaultAcquireRetries    = 3
	defaultAcquireRetryDelay = 200
	defaultMinDurationMillis = 250
	defaultMP3BitrateKbps    = 128
	defaultOggBitrateKbps    = 128
	defaultNormalizeCeiling  = 0.95
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Capture: Capture{
			SampleRate:              defaultSampleRate,
			Channels:                defaultChannels,
			FragmentMillis:          defaultFragmentMillis,
			MeterHz:                 defaultMeterHz,
			SettleMillis:            defaultSettleMillis,
			AcquireRetries:          defaultAcquireRetries,
			AcquireRetryDelayMillis: defaultAcquireRetryDelay,
			MinDurationMillis:       defaultMinDurationMillis,
		},
		Transcode: Transcode{
			FFmpeg:           "ffmpeg",
			MP3BitrateKbps:   defaultMP3BitrateKbps,
			OggBitrateKbps:   defaultOggBitrateKbps,
			NormalizeCeiling: defaultNormalizeCeiling,
		},
		Store: Store{
			CompressPayloads: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
