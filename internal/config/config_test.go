package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"loom/internal/config"
)

func TestLoadDefaultConfigUsesEnvAPIKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "loom", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "videos", "loom") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Generation.APIKey != "test-key" {
		t.Fatalf("expected generation key from env, got %q", cfg.Generation.APIKey)
	}
	if cfg.Generation.BaseURL != config.Default().Generation.BaseURL {
		t.Fatalf("unexpected generation base url: %q", cfg.Generation.BaseURL)
	}
	if cfg.Generation.RequestsPerMinute != 15 {
		t.Fatalf("unexpected requests per minute: %d", cfg.Generation.RequestsPerMinute)
	}
	if cfg.Generation.DailyTokenLimit != 1_000_000 {
		t.Fatalf("unexpected daily token limit: %d", cfg.Generation.DailyTokenLimit)
	}
	if cfg.Generation.TokenPolicy != config.TokenPolicyWarn {
		t.Fatalf("expected warn token policy by default, got %q", cfg.Generation.TokenPolicy)
	}
	if cfg.Generation.TimeoutSeconds != 30 {
		t.Fatalf("unexpected generation timeout: %d", cfg.Generation.TimeoutSeconds)
	}
	if cfg.Video.FPS != 30 {
		t.Fatalf("unexpected fps: %d", cfg.Video.FPS)
	}
	if cfg.Video.ReadingSpeedWPM != 150 {
		t.Fatalf("unexpected reading speed: %d", cfg.Video.ReadingSpeedWPM)
	}
	if cfg.Video.DefaultDurationSeconds != 300 {
		t.Fatalf("unexpected default duration: %d", cfg.Video.DefaultDurationSeconds)
	}
	if cfg.Workers.MaxConcurrent != 0 {
		t.Fatalf("expected unbounded worker pool by default, got %d", cfg.Workers.MaxConcurrent)
	}
	if cfg.Events.RedisAddr != "" {
		t.Fatalf("expected event publishing disabled by default, got %q", cfg.Events.RedisAddr)
	}
	if cfg.Storage.S3Bucket != "" {
		t.Fatalf("expected artifact upload disabled by default, got %q", cfg.Storage.S3Bucket)
	}
	if cfg.Intake.AMQPURL != "" {
		t.Fatalf("expected intake disabled by default, got %q", cfg.Intake.AMQPURL)
	}
	if cfg.Workers.HeartbeatInterval != config.Default().Workers.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Workers.HeartbeatInterval)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "loom.toml")

	type payload struct {
		Generation struct {
			APIKey            string `toml:"api_key"`
			Model             string `toml:"model"`
			RequestsPerMinute int    `toml:"requests_per_minute"`
			TokenPolicy       string `toml:"token_policy"`
		} `toml:"generation"`
		Video struct {
			FPS int `toml:"fps"`
		} `toml:"video"`
		Workers struct {
			MaxConcurrent     int `toml:"max_concurrent"`
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"workers"`
	}
	custom := payload{}
	custom.Generation.APIKey = "abc123"
	custom.Generation.Model = "gemini-2.5-pro"
	custom.Generation.RequestsPerMinute = 60
	custom.Generation.TokenPolicy = "STOP"
	custom.Video.FPS = 24
	custom.Workers.MaxConcurrent = 2
	custom.Workers.HeartbeatInterval = 20
	custom.Workers.HeartbeatTimeout = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Generation.APIKey != "abc123" {
		t.Fatalf("expected generation key from file, got %q", cfg.Generation.APIKey)
	}
	if cfg.Generation.Model != "gemini-2.5-pro" {
		t.Fatalf("expected model override, got %q", cfg.Generation.Model)
	}
	if cfg.Generation.RequestsPerMinute != 60 {
		t.Fatalf("expected requests per minute 60, got %d", cfg.Generation.RequestsPerMinute)
	}
	if cfg.Generation.TokenPolicy != config.TokenPolicyStop {
		t.Fatalf("expected token policy normalized to stop, got %q", cfg.Generation.TokenPolicy)
	}
	if cfg.Video.FPS != 24 {
		t.Fatalf("expected fps 24, got %d", cfg.Video.FPS)
	}
	if cfg.Workers.MaxConcurrent != 2 {
		t.Fatalf("expected max concurrent 2, got %d", cfg.Workers.MaxConcurrent)
	}
	if cfg.Workers.HeartbeatInterval != 20 {
		t.Fatalf("expected heartbeat interval 20, got %d", cfg.Workers.HeartbeatInterval)
	}
	if cfg.Workers.HeartbeatTimeout != 200 {
		t.Fatalf("expected heartbeat timeout 200, got %d", cfg.Workers.HeartbeatTimeout)
	}
}

func TestEnvVarFallbacksForCredentials(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "loom.toml")

	type payload struct {
		Storage struct {
			S3Bucket string `toml:"s3_bucket"`
		} `toml:"storage"`
	}
	custom := payload{}
	custom.Storage.S3Bucket = "loom-videos"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("GEMINI_API_KEY", "env-gemini")
	t.Setenv("AWS_ACCESS_KEY_ID", "env-access")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Generation.APIKey != "env-gemini" {
		t.Errorf("expected generation key from env, got %q", cfg.Generation.APIKey)
	}
	if cfg.Storage.S3AccessKey != "env-access" {
		t.Errorf("expected S3 access key from env, got %q", cfg.Storage.S3AccessKey)
	}
	if cfg.Storage.S3SecretKey != "env-secret" {
		t.Errorf("expected S3 secret key from env, got %q", cfg.Storage.S3SecretKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_gemini_api_key_here") {
		t.Fatalf("sample config missing placeholder API key: %s", contents)
	}

	// Validate it decodes
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	// On Windows join uses backslashes; skip path expectation specifics when running there to avoid
	// differences in drive letters during CI.
	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.StagingDir, "loom") {
			t.Fatalf("expected staging dir to contain loom, got %q", cfg.Paths.StagingDir)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.APIKey = "key"
	cfg.Generation.RequestsPerMinute = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive requests per minute")
	}

	cfg = config.Default()
	cfg.Generation.APIKey = "key"
	cfg.Generation.TokenPolicy = "block"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown token policy")
	}

	cfg = config.Default()
	cfg.Generation.APIKey = "key"
	cfg.Workers.HeartbeatInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for heartbeat interval")
	}

	cfg = config.Default()
	cfg.Generation.APIKey = "key"
	cfg.Workers.HeartbeatTimeout = cfg.Workers.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when timeout <= interval")
	}

	cfg = config.Default()
	cfg.Generation.APIKey = "key"
	cfg.Video.Width = 1281
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for odd video width")
	}

	cfg = config.Default()
	cfg.Generation.APIKey = "key"
	cfg.Video.DefaultDurationSeconds = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range default duration")
	}

	cfg = config.Default()
	cfg.Generation.APIKey = "key"
	cfg.Storage.S3Bucket = "bucket"
	cfg.Storage.S3AccessKey = ""
	cfg.Storage.S3SecretKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when S3 bucket set without credentials")
	}
}
