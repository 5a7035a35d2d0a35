package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/blechat/internal/peripheral"
)

// Config holds application configuration
type Config struct {
	LogLevel           string        `yaml:"log_level" default:"warn"`
	DeviceName         string        `yaml:"device_name" default:"BO_Chat"`
	ServiceUUID        string        `yaml:"service_uuid" default:"12345678-1234-1234-1234-123456789abc"`
	CharacteristicUUID string        `yaml:"characteristic_uuid" default:"87654321-4321-4321-4321-cba987654321"`
	ReadGreeting       string        `yaml:"read_greeting" default:"Hello from peripheral"`
	ServerReadyDelay   time.Duration `yaml:"server_ready_delay" default:"100ms"`
	SettleInterval     time.Duration `yaml:"settle_interval" default:"500ms"`
	AdvertiseTimeout   time.Duration `yaml:"advertise_timeout" default:"0s"`
	AdvertiseGrace     time.Duration `yaml:"advertise_start_grace" default:"250ms"`
	SignalBuffer       int           `yaml:"signal_buffer" default:"128"`
}

var shortUUID = regexp.MustCompile(`^[0-9a-fA-F]{4}$`)

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the log level, the UUIDs and the numeric limits.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.DeviceName == "" {
		errs = append(errs, errors.New("device_name must not be empty"))
	}
	if err := validateUUID(c.ServiceUUID); err != nil {
		errs = append(errs, fmt.Errorf("service_uuid: %w", err))
	}
	if err := validateUUID(c.CharacteristicUUID); err != nil {
		errs = append(errs, fmt.Errorf("characteristic_uuid: %w", err))
	}
	if c.ServerReadyDelay < 0 || c.SettleInterval < 0 || c.AdvertiseTimeout < 0 || c.AdvertiseGrace < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.SignalBuffer <= 0 {
		errs = append(errs, fmt.Errorf("signal_buffer must be positive, got %d", c.SignalBuffer))
	}
	return errors.Join(errs...)
}

func validateUUID(s string) error {
	if shortUUID.MatchString(s) {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("invalid UUID %q: %w", s, err)
	}
	return nil
}

// Level returns the parsed log level, falling back to warn.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// SessionOptions maps the configuration onto peripheral session options.
func (c *Config) SessionOptions() peripheral.Options {
	opts := peripheral.DefaultOptions()
	opts.Service = peripheral.ServiceDefinition{
		ServiceUUID:        c.ServiceUUID,
		CharacteristicUUID: c.CharacteristicUUID,
	}
	opts.Advertising.DeviceName = c.DeviceName
	opts.Advertising.ServiceUUID = c.ServiceUUID
	opts.Advertising.Timeout = c.AdvertiseTimeout
	opts.ReadGreeting = c.ReadGreeting
	opts.ServerReadyDelay = c.ServerReadyDelay
	opts.SettleInterval = c.SettleInterval
	opts.SignalBuffer = c.SignalBuffer
	return opts
}
