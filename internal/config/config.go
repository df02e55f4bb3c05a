// Package config loads the fgb command configuration.
//
// Configuration comes from a single YAML file named with --config. There is
// no discovery: without the flag the defaults apply, and command-line flags
// override whatever the file sets.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fgb configuration.
type Config struct {
	Logging Logging `yaml:"logging"`
	Remote  Remote  `yaml:"remote"`
	Serve   Serve   `yaml:"serve"`
	Write   Write   `yaml:"write"`
}

// Logging configures the slog handler.
type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Remote configures range reads against HTTP servers.
type Remote struct {
	// Timeout bounds each HTTP request. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Headers are added to every range request.
	Headers map[string]string `yaml:"headers"`
}

// Serve configures the container server.
type Serve struct {
	Addr        string   `yaml:"addr"`
	Dir         string   `yaml:"dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Write holds defaults for fgb convert.
type Write struct {
	Envelope      bool `yaml:"envelope"`
	LegacyBoolPad bool `yaml:"legacy_bool_pad"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Remote: Remote{
			Timeout: 30 * time.Second,
		},
		Serve: Serve{
			Addr:        ":8080",
			Dir:         ".",
			CORSOrigins: []string{"*"},
		},
	}
}

// LoadFile reads path and merges it over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("remote.timeout must not be negative, got %s", c.Remote.Timeout)
	}
	if c.Serve.Addr == "" {
		return fmt.Errorf("serve.addr is required")
	}
	return nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}
