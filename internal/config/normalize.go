package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGeneration()
	c.normalizeTTS()
	c.normalizeFFmpeg()
	c.normalizeVideo()
	c.normalizeEvents()
	c.normalizeStorage()
	c.normalizeIntake()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ProfilesFile) != "" {
		if c.Paths.ProfilesFile, err = expandPath(c.Paths.ProfilesFile); err != nil {
			return fmt.Errorf("paths.profiles_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeGeneration() {
	c.Generation.APIKey = strings.TrimSpace(c.Generation.APIKey)
	if c.Generation.APIKey == "" {
		if value, ok := os.LookupEnv("LOOM_GENERATION_API_KEY"); ok {
			c.Generation.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Generation.APIKey = strings.TrimSpace(value)
		}
	}
	c.Generation.BaseURL = strings.TrimSpace(c.Generation.BaseURL)
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = defaultGenerationBaseURL
	}
	c.Generation.Model = strings.TrimSpace(c.Generation.Model)
	if c.Generation.Model == "" {
		c.Generation.Model = defaultGenerationModel
	}
	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = defaultGenerationTimeoutSeconds
	}
	if c.Generation.RequestsPerMinute <= 0 {
		c.Generation.RequestsPerMinute = defaultRequestsPerMinute
	}
	if c.Generation.DailyTokenLimit <= 0 {
		c.Generation.DailyTokenLimit = defaultDailyTokenLimit
	}
	c.Generation.TokenPolicy = strings.ToLower(strings.TrimSpace(c.Generation.TokenPolicy))
	if c.Generation.TokenPolicy == "" {
		c.Generation.TokenPolicy = TokenPolicyWarn
	}
}

func (c *Config) normalizeTTS() {
	c.TTS.Binary = strings.TrimSpace(c.TTS.Binary)
	if c.TTS.Binary == "" {
		c.TTS.Binary = defaultTTSBinary
	}
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	if c.TTS.Voice == "" {
		c.TTS.Voice = defaultTTSVoice
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
	if c.FFmpeg.TimeoutSeconds <= 0 {
		c.FFmpeg.TimeoutSeconds = defaultFFmpegTimeoutSeconds
	}
}

func (c *Config) normalizeVideo() {
	if c.Video.Width <= 0 {
		c.Video.Width = defaultVideoWidth
	}
	if c.Video.Height <= 0 {
		c.Video.Height = defaultVideoHeight
	}
	if c.Video.FPS <= 0 {
		c.Video.FPS = defaultVideoFPS
	}
	if c.Video.ReadingSpeedWPM <= 0 {
		c.Video.ReadingSpeedWPM = defaultReadingSpeedWPM
	}
	if c.Video.DefaultDurationSeconds <= 0 {
		c.Video.DefaultDurationSeconds = defaultDurationSeconds
	}
	if c.Video.QualityScore <= 0 {
		c.Video.QualityScore = defaultQualityScore
	}
}

func (c *Config) normalizeEvents() {
	c.Events.RedisAddr = strings.TrimSpace(c.Events.RedisAddr)
	if c.Events.RedisPassword == "" {
		if value, ok := os.LookupEnv("LOOM_REDIS_PASSWORD"); ok {
			c.Events.RedisPassword = strings.TrimSpace(value)
		}
	}
	c.Events.ChannelPrefix = strings.TrimSpace(c.Events.ChannelPrefix)
	if c.Events.ChannelPrefix == "" {
		c.Events.ChannelPrefix = defaultEventChannelPrefix
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.S3Bucket = strings.TrimSpace(c.Storage.S3Bucket)
	c.Storage.S3Endpoint = strings.TrimSpace(c.Storage.S3Endpoint)
	c.Storage.S3Region = strings.TrimSpace(c.Storage.S3Region)
	if c.Storage.S3Region == "" {
		c.Storage.S3Region = defaultStorageRegion
	}
	c.Storage.S3AccessKey = strings.TrimSpace(c.Storage.S3AccessKey)
	if c.Storage.S3AccessKey == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			c.Storage.S3AccessKey = strings.TrimSpace(value)
		}
	}
	c.Storage.S3SecretKey = strings.TrimSpace(c.Storage.S3SecretKey)
	if c.Storage.S3SecretKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			c.Storage.S3SecretKey = strings.TrimSpace(value)
		}
	}
	c.Storage.S3KeyPrefix = strings.Trim(strings.TrimSpace(c.Storage.S3KeyPrefix), "/")
}

func (c *Config) normalizeIntake() {
	c.Intake.AMQPURL = strings.TrimSpace(c.Intake.AMQPURL)
	if c.Intake.AMQPURL == "" {
		if value, ok := os.LookupEnv("LOOM_AMQP_URL"); ok {
			c.Intake.AMQPURL = strings.TrimSpace(value)
		}
	}
	c.Intake.Queue = strings.TrimSpace(c.Intake.Queue)
	if c.Intake.Queue == "" {
		c.Intake.Queue = defaultIntakeQueue
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
