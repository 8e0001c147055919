package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/loom/config.toml"
		}
		return fmt.Errorf("generation.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'loom config init')", defaultPath)
	}
	if c.Generation.TimeoutSeconds <= 0 {
		return errors.New("generation.timeout_seconds must be positive")
	}
	if c.Generation.RequestsPerMinute <= 0 {
		return errors.New("generation.requests_per_minute must be positive")
	}
	if c.Generation.DailyTokenLimit <= 0 {
		return errors.New("generation.daily_token_limit must be positive")
	}
	switch c.Generation.TokenPolicy {
	case TokenPolicyWarn, TokenPolicyStop:
	default:
		return fmt.Errorf("generation.token_policy must be %q or %q", TokenPolicyWarn, TokenPolicyStop)
	}
	return nil
}

func (c *Config) validateTTS() error {
	if strings.TrimSpace(c.TTS.Binary) == "" {
		return errors.New("tts.binary must be set")
	}
	if c.TTS.TimeoutSeconds <= 0 {
		return errors.New("tts.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if strings.TrimSpace(c.FFmpeg.Binary) == "" {
		return errors.New("ffmpeg.binary must be set")
	}
	if strings.TrimSpace(c.FFmpeg.FFprobeBinary) == "" {
		return errors.New("ffmpeg.ffprobe_binary must be set")
	}
	if c.FFmpeg.TimeoutSeconds <= 0 {
		return errors.New("ffmpeg.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return errors.New("video.width and video.height must be positive")
	}
	// yuv420p output requires even dimensions.
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		return errors.New("video.width and video.height must be even")
	}
	if c.Video.FPS <= 0 {
		return errors.New("video.fps must be positive")
	}
	if c.Video.ReadingSpeedWPM <= 0 {
		return errors.New("video.reading_speed_wpm must be positive")
	}
	if c.Video.DefaultDurationSeconds < MinTargetDurationSeconds || c.Video.DefaultDurationSeconds > MaxTargetDurationSeconds {
		return fmt.Errorf("video.default_duration_seconds must be between %d and %d", MinTargetDurationSeconds, MaxTargetDurationSeconds)
	}
	if c.Video.QualityScore <= 0 || c.Video.QualityScore > 1 {
		return errors.New("video.quality_score must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.MaxConcurrent < 0 {
		return errors.New("workers.max_concurrent must be >= 0 (0 means unbounded)")
	}
	if err := ensurePositiveMap(map[string]int{
		"workers.queue_poll_interval": c.Workers.QueuePollInterval,
		"workers.heartbeat_interval":  c.Workers.HeartbeatInterval,
		"workers.heartbeat_timeout":   c.Workers.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if c.Workers.HeartbeatTimeout <= c.Workers.HeartbeatInterval {
		return errors.New("workers.heartbeat_timeout must be greater than workers.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.S3Bucket == "" {
		return nil
	}
	if c.Storage.S3Region == "" {
		return errors.New("storage.s3_region must be set when storage.s3_bucket is set")
	}
	if c.Storage.S3AccessKey == "" || c.Storage.S3SecretKey == "" {
		return errors.New("storage.s3_access_key and storage.s3_secret_key must be set when storage.s3_bucket is set (or set AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY)")
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
