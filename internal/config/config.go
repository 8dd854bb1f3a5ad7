package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the collector's ambient settings. Watch targets and poll
// intervals are fixed at build time and deliberately absent here.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Queue   QueueConfig   `yaml:"queue"`
	Health  HealthConfig  `yaml:"health"`
	Metrics MetricsConfig `yaml:"metrics"`
	Stream  StreamConfig  `yaml:"stream"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type QueueConfig struct {
	Capacity        int           `yaml:"capacity"`
	DropLogInterval time.Duration `yaml:"drop_log_interval"`
}

type HealthConfig struct {
	// FailureThreshold is the number of consecutive failed poll cycles
	// after which a watcher is reported as degraded.
	FailureThreshold int `yaml:"failure_threshold"`
}

type MetricsConfig struct {
	// Listen is the address for /metrics and /healthz. Empty disables it.
	Listen string `yaml:"listen"`
}

// StreamConfig controls the WebSocket live tail. Port 0 disables it.
type StreamConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Token          string   `yaml:"token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

// Enabled reports whether the live tail should be served.
func (s StreamConfig) Enabled() bool {
	return s.Port > 0
}

// Addr returns the host:port the live tail listens on.
func (s StreamConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Queue: QueueConfig{
			Capacity:        4096,
			DropLogInterval: 10 * time.Second,
		},
		Health: HealthConfig{
			FailureThreshold: 3,
		},
		Stream: StreamConfig{
			Host:           "127.0.0.1",
			MaxConnections: 16,
		},
	}
}

// Load reads a YAML file and overlays it on Default. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values that cannot be applied.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Queue.DropLogInterval <= 0 {
		return fmt.Errorf("queue.drop_log_interval must be positive, got %s", c.Queue.DropLogInterval)
	}
	if c.Health.FailureThreshold <= 0 {
		return fmt.Errorf("health.failure_threshold must be positive, got %d", c.Health.FailureThreshold)
	}
	if c.Stream.Port < 0 || c.Stream.Port > 65535 {
		return fmt.Errorf("stream.port out of range: %d", c.Stream.Port)
	}
	if c.Stream.MaxConnections < 0 {
		return fmt.Errorf("stream.max_connections must not be negative, got %d", c.Stream.MaxConnections)
	}
	return nil
}
