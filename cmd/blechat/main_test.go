//go:build test

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blechat/internal/peripheral"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestFormatSignal(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		sig  peripheral.Signal
		want string
	}{
		{peripheral.Signal{Kind: peripheral.SignalDeviceConnected, Address: "AA:BB"}, "[+] AA:BB connected"},
		{peripheral.Signal{Kind: peripheral.SignalDeviceDisconnected, Address: "AA:BB"}, "[-] AA:BB disconnected"},
		{peripheral.Signal{Kind: peripheral.SignalMessageReceived, Address: "AA:BB", Text: "yo"}, "[AA:BB] yo"},
		{peripheral.Signal{Kind: peripheral.SignalNotificationsEnabled, Address: "AA:BB"}, "[*] AA:BB subscribed"},
		{peripheral.Signal{Kind: peripheral.SignalNotificationsDisabled, Address: "AA:BB"}, "[*] AA:BB unsubscribed"},
		{peripheral.Signal{Kind: peripheral.SignalAdvertisingStarted}, "Advertising started"},
		{peripheral.Signal{Kind: peripheral.SignalAdvertisingFailed, Reason: "Data too large"}, "Advertising failed: Data too large"},
	}

	for _, tt := range tests {
		t.Run(string(tt.sig.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, formatSignal(tt.sig))
		})
	}
}

func TestFormatReport(t *testing.T) {
	color.NoColor = true

	report := peripheral.BroadcastReport{
		Outcome:   peripheral.OutcomeSent,
		Delivered: []peripheral.DeviceIdentity{peripheral.NewIdentity("aa:bb")},
		Stale:     []peripheral.DeviceIdentity{peripheral.NewIdentity("cc:dd"), peripheral.NewIdentity("ee:ff")},
	}
	assert.Equal(t, "Sent to 1 device(s)\n  stale: CC:DD, EE:FF", formatReport(report))

	assert.Equal(t, "No connected devices", formatReport(peripheral.BroadcastReport{Outcome: peripheral.OutcomeNoConnections}))
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"adapter off", &peripheral.SetupError{Kind: peripheral.SetupAdapterDisabled, Err: errors.New("hci down")},
			"adapter_disabled: hci down (is Bluetooth turned on?)"},
		{"permissions", fmt.Errorf("%w: denied", peripheral.ErrAdvertiserUnavailable),
			"advertiser_unavailable: denied (the process may lack Bluetooth permissions)"},
		{"unsupported", peripheral.ErrAdvertisingUnsupported,
			"advertising_unsupported (this adapter cannot act as a peripheral)"},
		{"not running", peripheral.ErrNotRunning, "peripheral is not running (use /start)"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

// newServeTestCmd builds a serve command with fresh flag state.
func newServeTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("config", "", "")
	addServeFlags(cmd)
	return cmd
}

func TestConfigureLogger(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    logrus.Level
		wantErr bool
	}{
		{name: "config level when flag unset", want: logrus.WarnLevel},
		{name: "flag overrides config", args: []string{"--log-level", "debug"}, want: logrus.DebugLevel},
		{name: "invalid flag", args: []string{"--log-level", "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newServeTestCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))

			cfg, err := loadServeConfig(cmd)
			require.NoError(t, err)

			logger, err := configureLogger(cmd, cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLogLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestLoadServeConfig(t *testing.T) {
	// GOAL: Verify serve flags override the config file, which overrides defaults
	//
	// TEST SCENARIO: file sets name and settle → --name and --char flags win → untouched keys keep file or default values
	path := filepath.Join(t.TempDir(), "blechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device_name: FromFile\nsettle_interval: 1s\n"), 0o600))

	cmd := newServeTestCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--name", "FromFlag", "--char", "2a37"}))

	cfg, err := loadServeConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "FromFlag", cfg.DeviceName)
	assert.Equal(t, "2a37", cfg.CharacteristicUUID)
	assert.Equal(t, time.Second, cfg.SettleInterval)
	assert.Equal(t, peripheral.DefaultServiceUUID, cfg.ServiceUUID)

	cmd = newServeTestCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--service", "not-a-uuid"}))
	_, err = loadServeConfig(cmd)
	assert.ErrorContains(t, err, "invalid settings")
}
