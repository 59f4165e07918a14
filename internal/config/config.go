package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the FormSight server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Engine   EngineConfig
	Analysis AnalysisConfig
	Upload   UploadConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type EngineConfig struct {
	Provider string
	Native   NativeEngineConfig
	Remote   RemoteEngineConfig
}

type NativeEngineConfig struct {
	FrameRate int
}

type RemoteEngineConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AnalysisConfig bounds the orchestrator. Capacity is the worker count and the
// admission bound for in-flight work; QueueBuffer adds extra queued-only depth
// on top of it, so at most Capacity+QueueBuffer jobs are admitted at once.
type AnalysisConfig struct {
	Capacity    int
	QueueBuffer int
	Timeout     time.Duration
}

type UploadConfig struct {
	Dir            string
	MaxSizeMB      int
	MaxDurationSec int
}

var validProviders = map[string]bool{
	"native": true,
	"remote": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("FORMSIGHT_PORT", 8080),
			Env:             envString("FORMSIGHT_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Engine: EngineConfig{
			Provider: envString("ENGINE_PROVIDER", "native"),
			Native: NativeEngineConfig{
				FrameRate: envInt("ENGINE_NATIVE_FRAME_RATE", 30),
			},
			Remote: RemoteEngineConfig{
				BaseURL: os.Getenv("ENGINE_REMOTE_BASE_URL"),
				Timeout: envDurationSecs("ENGINE_REMOTE_TIMEOUT_SECS", 10*time.Minute),
			},
		},
		Analysis: AnalysisConfig{
			Capacity:    envInt("ANALYSIS_CAPACITY", 3),
			QueueBuffer: envInt("ANALYSIS_QUEUE_BUFFER", 0),
			Timeout:     envDurationSecs("ANALYSIS_TIMEOUT_SECS", 5*time.Minute),
		},
		Upload: UploadConfig{
			Dir:            envString("UPLOAD_DIR", "uploads"),
			MaxSizeMB:      envInt("MAX_UPLOAD_SIZE_MB", 100),
			MaxDurationSec: envInt("MAX_VIDEO_DURATION_SEC", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validProviders[c.Engine.Provider] {
		return fmt.Errorf("ENGINE_PROVIDER must be one of native, remote; got %q", c.Engine.Provider)
	}
	if c.Engine.Provider == "remote" {
		if c.Engine.Remote.BaseURL == "" {
			return fmt.Errorf("ENGINE_REMOTE_BASE_URL is required when ENGINE_PROVIDER is remote")
		}
		if !strings.HasPrefix(c.Engine.Remote.BaseURL, "http://") && !strings.HasPrefix(c.Engine.Remote.BaseURL, "https://") {
			return fmt.Errorf("ENGINE_REMOTE_BASE_URL must start with http:// or https://, got %q", c.Engine.Remote.BaseURL)
		}
	}

	if c.Analysis.Capacity < 1 {
		return fmt.Errorf("ANALYSIS_CAPACITY must be at least 1, got %d", c.Analysis.Capacity)
	}
	if c.Analysis.QueueBuffer < 0 {
		return fmt.Errorf("ANALYSIS_QUEUE_BUFFER must not be negative, got %d", c.Analysis.QueueBuffer)
	}
	if c.Analysis.Timeout <= 0 {
		return fmt.Errorf("ANALYSIS_TIMEOUT_SECS must be positive")
	}

	if c.Upload.Dir == "" {
		return fmt.Errorf("UPLOAD_DIR must not be empty")
	}
	if c.Upload.MaxSizeMB < 1 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be at least 1, got %d", c.Upload.MaxSizeMB)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
