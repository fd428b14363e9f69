package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the ISP client configuration.
type Config struct {
	Port          string        `yaml:"port"`
	Baud          int           `yaml:"baud"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxPacketSize int           `yaml:"max_packet_size"`
	EnterISP      bool          `yaml:"enter_isp"`
	Log           LogConfig     `yaml:"log"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Environment variables that override file values
const (
	EnvPort    = "LPC55_ISP_PORT"
	EnvBaud    = "LPC55_ISP_BAUD"
	EnvTimeout = "LPC55_ISP_TIMEOUT"
	EnvLogFile = "LPC55_ISP_LOG_FILE"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Baud:          57600,
		Timeout:       5 * time.Second,
		MaxPacketSize: 512,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile merges a YAML file into cfg, rejecting unknown fields.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if port := os.Getenv(EnvPort); port != "" {
		cfg.Port = port
	}

	if baud := os.Getenv(EnvBaud); baud != "" {
		v, err := strconv.Atoi(baud)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBaud, err)
		}
		cfg.Baud = v
	}

	if timeout := os.Getenv(EnvTimeout); timeout != "" {
		v, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = v
	}

	if file := os.Getenv(EnvLogFile); file != "" {
		cfg.Log.File = file
	}

	return nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxPacketSize <= 0 || c.MaxPacketSize > 0xFFFF {
		return fmt.Errorf("max_packet_size must be in 1..65535, got %d", c.MaxPacketSize)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
