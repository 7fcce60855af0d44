package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		Path            string        `yaml:"path"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		MaxMessageBytes int64         `yaml:"max_message_bytes"`
	} `yaml:"signal"`

	Keys struct {
		Secret       string        `yaml:"secret"`
		PublicSecret string        `yaml:"public_secret"`
		Expiry       time.Duration `yaml:"expiry"`
	} `yaml:"keys"`

	HLS struct {
		LocalDir string `yaml:"local_dir"`
	} `yaml:"hls"`

	Storage struct {
		S3Enabled bool   `yaml:"s3_enabled"`
		S3Bucket  string `yaml:"s3_bucket"`
		S3Region  string `yaml:"s3_region"`
		S3Prefix  string `yaml:"s3_prefix"`
	} `yaml:"storage"`

	Recordings struct {
		TTL           time.Duration `yaml:"ttl"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	} `yaml:"recordings"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`

		WebSocket struct {
			MessagesPerSecond float64 `yaml:"messages_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= 0 {
		return fmt.Errorf("signal.pong_timeout must be > 0")
	}

	if c.Keys.Secret == "" {
		return fmt.Errorf("keys.secret must not be empty")
	}
	if c.Keys.PublicSecret == "" {
		return fmt.Errorf("keys.public_secret must not be empty")
	}
	if c.Keys.Secret == c.Keys.PublicSecret {
		return fmt.Errorf("keys.secret and keys.public_secret must differ")
	}
	if c.Keys.Expiry <= 0 {
		return fmt.Errorf("keys.expiry must be > 0")
	}

	if c.HLS.LocalDir == "" {
		return fmt.Errorf("hls.local_dir must not be empty")
	}

	if c.Storage.S3Enabled && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage.s3_bucket must not be empty when storage.s3_enabled=true")
	}

	if c.Recordings.TTL <= 0 {
		return fmt.Errorf("recordings.ttl must be > 0")
	}
	if c.Recordings.SweepInterval <= 0 {
		return fmt.Errorf("recordings.sweep_interval must be > 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file is not an error; defaults plus env apply.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signal.Path = "/ws"
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.Signal.MaxMessageBytes = 1 << 20

	cfg.Keys.Secret = "change-me-in-production"
	cfg.Keys.PublicSecret = "change-me-too-in-production"
	cfg.Keys.Expiry = 24 * time.Hour

	cfg.HLS.LocalDir = "uploads/hls"

	cfg.Storage.S3Enabled = false
	cfg.Storage.S3Region = "us-east-1"
	cfg.Storage.S3Prefix = "stream-recordings"

	cfg.Recordings.TTL = 24 * time.Hour
	cfg.Recordings.SweepInterval = 1 * time.Hour

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 100
	cfg.RateLimiting.WebSocket.Burst = 200

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("TRAXX_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if secret := os.Getenv("TRAXX_STREAM_KEY_SECRET"); secret != "" {
		c.Keys.Secret = secret
	}
	if secret := os.Getenv("TRAXX_PUBLIC_ID_SECRET"); secret != "" {
		c.Keys.PublicSecret = secret
	}
	if secret := os.Getenv("TRAXX_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if bucket := os.Getenv("TRAXX_S3_BUCKET"); bucket != "" {
		c.Storage.S3Bucket = bucket
		c.Storage.S3Enabled = true
	}
	if region := os.Getenv("TRAXX_S3_REGION"); region != "" {
		c.Storage.S3Region = region
	}
	if dir := os.Getenv("TRAXX_HLS_DIR"); dir != "" {
		c.HLS.LocalDir = dir
	}
	if addr := os.Getenv("TRAXX_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if level := os.Getenv("TRAXX_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}
