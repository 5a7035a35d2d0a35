package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blechat/internal/peripheral"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, peripheral.DefaultDeviceName, cfg.DeviceName)
	assert.Equal(t, peripheral.DefaultServiceUUID, cfg.ServiceUUID)
	assert.Equal(t, peripheral.DefaultCharacteristicUUID, cfg.CharacteristicUUID)
	assert.Equal(t, peripheral.DefaultReadGreeting, cfg.ReadGreeting)
	assert.Equal(t, 100*time.Millisecond, cfg.ServerReadyDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.AdvertiseGrace)
	assert.Zero(t, cfg.AdvertiseTimeout)
	assert.Equal(t, 128, cfg.SignalBuffer)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{
			name:     "creates logger with debug level",
			logLevel: "debug",
			want:     logrus.DebugLevel,
		},
		{
			name:     "creates logger with info level",
			logLevel: "info",
			want:     logrus.InfoLevel,
		},
		{
			name:     "creates logger with error level",
			logLevel: "error",
			want:     logrus.ErrorLevel,
		},
		{
			name:     "falls back to warn on garbage",
			logLevel: "loud",
			want:     logrus.WarnLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel: tt.logLevel,
			}

			logger := cfg.NewLogger()

			assert.NotNil(t, logger)
			assert.Equal(t, tt.want, logger.GetLevel())

			// Verify formatter is set correctly
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
device_name: Lobby
service_uuid: "180d"
settle_interval: 50ms
signal_buffer: 16
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Lobby", cfg.DeviceName)
	assert.Equal(t, "180d", cfg.ServiceUUID)
	assert.Equal(t, 50*time.Millisecond, cfg.SettleInterval)
	assert.Equal(t, 16, cfg.SignalBuffer)
	assert.Equal(t, peripheral.DefaultCharacteristicUUID, cfg.CharacteristicUUID, "unset keys MUST keep defaults")
	assert.Equal(t, 100*time.Millisecond, cfg.ServerReadyDelay)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("settle_interval: [1, 2"), 0o600))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("service_uuid: nope\n"), 0o600))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "service_uuid")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "short UUID is valid",
			mutate: func(c *Config) { c.CharacteristicUUID = "2A37" },
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.LogLevel = "chatty" },
			errMsg: "not a valid logrus Level",
		},
		{
			name:   "empty device name",
			mutate: func(c *Config) { c.DeviceName = "" },
			errMsg: "device_name",
		},
		{
			name:   "malformed characteristic UUID",
			mutate: func(c *Config) { c.CharacteristicUUID = "12345" },
			errMsg: "characteristic_uuid",
		},
		{
			name:   "negative duration",
			mutate: func(c *Config) { c.SettleInterval = -time.Second },
			errMsg: "durations must not be negative",
		},
		{
			name:   "zero signal buffer",
			mutate: func(c *Config) { c.SignalBuffer = 0 },
			errMsg: "signal_buffer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestConfig_SessionOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeviceName = "Lobby"
	cfg.ServiceUUID = "180d"
	cfg.AdvertiseTimeout = time.Minute
	cfg.SettleInterval = 0

	opts := cfg.SessionOptions()

	assert.Equal(t, "Lobby", opts.Advertising.DeviceName)
	assert.Equal(t, "180d", opts.Advertising.ServiceUUID)
	assert.Equal(t, "180d", opts.Service.ServiceUUID)
	assert.Equal(t, time.Minute, opts.Advertising.Timeout)
	assert.True(t, opts.Advertising.Connectable)
	assert.Zero(t, opts.SettleInterval)
	assert.Equal(t, cfg.ReadGreeting, opts.ReadGreeting)
}
