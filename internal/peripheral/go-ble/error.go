package goble

import (
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blechat/internal/peripheral"
)

// Transport errors returned by Notify and SendResponse
var (
	ErrNotConnected   = errors.New("device not connected")
	ErrNotSubscribed  = errors.New("device has not enabled notifications")
	ErrUnknownRequest = errors.New("no pending request")
	ErrForeignHandle  = errors.New("connection handle does not belong to this stack")
	ErrNotOpen        = errors.New("stack is not open")
)

// NormalizeError maps known go-ble error strings to the peripheral setup
// sentinels or the transport errors above. The original error is wrapped to
// preserve context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", peripheral.ErrAdapterDisabled, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"),
		containsIgnoreCase(msg, "powered off"),
		containsIgnoreCase(msg, "can't init hci"),
		containsIgnoreCase(msg, "no devices available"):
		return fmt.Errorf("%w: %v", peripheral.ErrAdapterDisabled, err)
	case containsIgnoreCase(msg, "advertising is not supported"),
		containsIgnoreCase(msg, "le not supported"):
		return fmt.Errorf("%w: %v", peripheral.ErrAdvertisingUnsupported, err)
	case containsIgnoreCase(msg, "operation not permitted"),
		containsIgnoreCase(msg, "permission denied"),
		containsIgnoreCase(msg, "unauthorized"):
		return fmt.Errorf("%w: %v", peripheral.ErrAdvertiserUnavailable, err)
	case containsIgnoreCase(msg, "device not connected"),
		containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	default:
		return err
	}
}

// advertiseError classifies an advertising failure into the platform codes.
func advertiseError(err error) error {
	if err == nil {
		return nil
	}
	var serr *peripheral.SetupError
	if errors.As(NormalizeError(err), &serr) {
		return &peripheral.SetupError{Kind: serr.Kind, Err: err}
	}

	msg := err.Error()
	code := peripheral.AdvertiseInternalError
	switch {
	case containsIgnoreCase(msg, "already"):
		code = peripheral.AdvertiseAlreadyStarted
	case containsIgnoreCase(msg, "too large"), containsIgnoreCase(msg, "too long"):
		code = peripheral.AdvertiseDataTooLarge
	case containsIgnoreCase(msg, "too many"):
		code = peripheral.AdvertiseTooManyAdvertisers
	case containsIgnoreCase(msg, "not supported"), containsIgnoreCase(msg, "unsupported"):
		code = peripheral.AdvertiseFeatureUnsupported
	}
	return &peripheral.AdvertiseError{Code: code, Err: err}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
