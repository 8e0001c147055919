package config

const (
	defaultStagingDir       = "~/.local/share/loom/staging"
	defaultOutputDir        = "~/videos/loom"
	defaultLogDir           = "~/.local/share/loom/logs"
	defaultLogRetentionDays = 60
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	defaultGenerationBaseURL        = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"
	defaultGenerationModel          = "gemini-2.0-flash"
	defaultGenerationTimeoutSeconds = 30
	defaultRequestsPerMinute        = 15
	defaultDailyTokenLimit          = 1_000_000

	defaultTTSBinary         = "espeak-ng"
	defaultTTSVoice          = "en-US"
	defaultTTSTimeoutSeconds = 120

	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultFFmpegTimeoutSeconds = 600

	defaultVideoWidth       = 1280
	defaultVideoHeight      = 720
	defaultVideoFPS         = 30
	defaultReadingSpeedWPM  = 150
	defaultDurationSeconds  = 300
	defaultQualityScore     = 0.9
	defaultQueuePollSeconds = 5
	defaultHeartbeatSeconds = 15
	defaultHeartbeatTimeout = 120

	defaultNotifyRequestTimeout = 10
	defaultEventChannelPrefix   = "loom:jobs"
	defaultStorageRegion        = "us-east-1"
	defaultIntakeQueue          = "loom.submissions"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Generation: Generation{
			BaseURL:           defaultGenerationBaseURL,
			Model:             defaultGenerationModel,
			TimeoutSeconds:    defaultGenerationTimeoutSeconds,
			RequestsPerMinute: defaultRequestsPerMinute,
			DailyTokenLimit:   defaultDailyTokenLimit,
			TokenPolicy:       TokenPolicyWarn,
		},
		TTS: TTS{
			Binary:         defaultTTSBinary,
			Voice:          defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		FFmpeg: FFmpeg{
			Binary:         defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			TimeoutSeconds: defaultFFmpegTimeoutSeconds,
		},
		Video: Video{
			Width:                  defaultVideoWidth,
			Height:                 defaultVideoHeight,
			FPS:                    defaultVideoFPS,
			ReadingSpeedWPM:        defaultReadingSpeedWPM,
			DefaultDurationSeconds: defaultDurationSeconds,
			QualityScore:           defaultQualityScore,
		},
		Workers: Workers{
			MaxConcurrent:     0,
			QueuePollInterval: defaultQueuePollSeconds,
			HeartbeatInterval: defaultHeartbeatSeconds,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobQueued:      true,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Events: Events{
			ChannelPrefix: defaultEventChannelPrefix,
		},
		Storage: Storage{
			S3Region: defaultStorageRegion,
		},
		Intake: Intake{
			Queue: defaultIntakeQueue,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
