package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Terminal  TerminalConfig
	ActionLog ActionLogConfig
	MQTT      MQTTConfig
	Pressure  PressureConfig
	Bench     BenchConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"APP_PORT" default:"8080"`
	Host string `envconfig:"APP_HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// TerminalConfig holds interactive terminal configuration.
type TerminalConfig struct {
	Shell string `envconfig:"TERM_SHELL" default:"/bin/bash"`
	// LoginShell adds "-l" so the spawned shell reads login rc files.
	LoginShell bool `envconfig:"TERM_LOGIN_SHELL" default:"true"`
}

// ActionLogConfig holds on-disk action log configuration.
type ActionLogConfig struct {
	Dir           string `envconfig:"BENCH_LOG_DIR"`
	RetentionDays int    `envconfig:"BENCH_LOG_RETENTION_DAYS" default:"7"`
}

// MQTTConfig holds message bus configuration.
type MQTTConfig struct {
	Enabled  bool   `envconfig:"MQTT_ENABLED" default:"false"`
	Broker   string `envconfig:"MQTT_BROKER" default:"192.168.1.8"`
	Port     int    `envconfig:"MQTT_PORT" default:"1883"`
	ClientID string `envconfig:"MQTT_CLIENT_ID" default:"shop-controller"`
	Base     string `envconfig:"MQTT_BASE" default:"shop_controller"`
}

// PressureConfig holds air-pressure sensor configuration.
type PressureConfig struct {
	MaxPSI      float64 `envconfig:"PRESSURE_SENSOR_MAX_PSI" default:"200.0"`
	WiringMode  string  `envconfig:"PRESSURE_WIRING_MODE" default:"divider"`
	SmoothAlpha float64 `envconfig:"PRESSURE_SMOOTH_ALPHA" default:"0.25"`
	PollHz      float64 `envconfig:"PRESSURE_POLL_HZ" default:"10"`
}

// BenchConfig holds bench hardware configuration.
type BenchConfig struct {
	// ChannelsFile optionally overrides the built-in channel map (YAML).
	ChannelsFile string `envconfig:"BENCH_CHANNELS_FILE"`
	// TCPHost and TCPBasePort locate the per-bench serial bridges:
	// bench N listens on TCPBasePort+N-1.
	TCPHost     string `envconfig:"BENCH_TCP_HOST" default:"127.0.0.1"`
	TCPBasePort int    `envconfig:"BENCH_TCP_BASE_PORT" default:"3001"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyDerived(&cfg)
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Terminal: TerminalConfig{
			Shell:      "/bin/bash",
			LoginShell: true,
		},
		ActionLog: ActionLogConfig{
			RetentionDays: 7,
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			Broker:   "192.168.1.8",
			Port:     1883,
			ClientID: "shop-controller",
			Base:     "shop_controller",
		},
		Pressure: PressureConfig{
			MaxPSI:      200.0,
			WiringMode:  "divider",
			SmoothAlpha: 0.25,
			PollHz:      10,
		},
		Bench: BenchConfig{
			TCPHost:     "127.0.0.1",
			TCPBasePort: 3001,
		},
	}
	applyDerived(cfg)
	return cfg
}

// applyDerived fills values that depend on the runtime environment.
func applyDerived(cfg *Config) {
	if cfg.ActionLog.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		cfg.ActionLog.Dir = filepath.Join(home, "bench_logs")
	}
}
