package main

import (
	"errors"

	"github.com/srg/blechat/internal/peripheral"
)

// Command-level errors
var (
	// ErrInvalidLogLevel is returned for a --log-level value logrus cannot parse.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// FormatUserError turns err into a message with a hint for the usual causes.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, peripheral.ErrAdapterDisabled):
		return err.Error() + " (is Bluetooth turned on?)"
	case errors.Is(err, peripheral.ErrAdvertiserUnavailable):
		return err.Error() + " (the process may lack Bluetooth permissions)"
	case errors.Is(err, peripheral.ErrAdvertisingUnsupported):
		return err.Error() + " (this adapter cannot act as a peripheral)"
	case errors.Is(err, peripheral.ErrNotRunning):
		return "peripheral is not running (use /start)"
	case errors.Is(err, peripheral.ErrAlreadyRunning):
		return "peripheral is already running"
	default:
		return err.Error()
	}
}
