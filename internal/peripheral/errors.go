package peripheral

import (
	"errors"
	"fmt"
)

// SetupKind classifies a failure that prevents the peripheral from starting.
type SetupKind string

const (
	SetupAdapterDisabled        SetupKind = "adapter_disabled"
	SetupAdvertisingUnsupported SetupKind = "advertising_unsupported"
	SetupAdvertiserUnavailable  SetupKind = "advertiser_unavailable"
	SetupServiceRejected        SetupKind = "service_registration_rejected"
	SetupAdvertiseFailed        SetupKind = "advertise_failed"
)

// SetupError is fatal to Session.Start. It is never retried by the session.
type SetupError struct {
	Kind SetupKind
	Err  error
}

func (e *SetupError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SetupError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is allows errors.Is to compare SetupError values by Kind
func (e *SetupError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*SetupError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors for setup failures
var (
	ErrAdapterDisabled        = &SetupError{Kind: SetupAdapterDisabled}
	ErrAdvertisingUnsupported = &SetupError{Kind: SetupAdvertisingUnsupported}
	ErrAdvertiserUnavailable  = &SetupError{Kind: SetupAdvertiserUnavailable}
	ErrServiceRejected        = &SetupError{Kind: SetupServiceRejected}
	ErrAdvertiseFailed        = &SetupError{Kind: SetupAdvertiseFailed}
)

// Lifecycle errors returned by host commands
var (
	ErrNotRunning     = errors.New("peripheral is not running")
	ErrAlreadyRunning = errors.New("peripheral is already running")
)

// IsSetupKind reports whether err is a SetupError of the given kind
func IsSetupKind(err error, kind SetupKind) bool {
	var serr *SetupError
	if errors.As(err, &serr) {
		return serr.Kind == kind
	}
	return false
}

// asSetupError returns err as a SetupError, wrapping it with fallback when it
// carries no setup classification yet.
func asSetupError(err error, fallback SetupKind) *SetupError {
	var serr *SetupError
	if errors.As(err, &serr) && serr.Err != nil {
		return serr
	}
	if serr != nil {
		// err wraps a bare sentinel, keep its kind and the full message.
		return &SetupError{Kind: serr.Kind, Err: err}
	}
	return &SetupError{Kind: fallback, Err: err}
}

// AdvertiseCode is the platform reason for an advertising start failure.
type AdvertiseCode int

const (
	AdvertiseDataTooLarge       AdvertiseCode = 1
	AdvertiseTooManyAdvertisers AdvertiseCode = 2
	AdvertiseAlreadyStarted     AdvertiseCode = 3
	AdvertiseInternalError      AdvertiseCode = 4
	AdvertiseFeatureUnsupported AdvertiseCode = 5
)

// AdvertiseError carries the code reported by an advertise-start callback.
type AdvertiseError struct {
	Code AdvertiseCode
	Err  error
}

// Reason renders the code as the text surfaced in advertisingFailed signals.
func (e *AdvertiseError) Reason() string {
	switch e.Code {
	case AdvertiseAlreadyStarted:
		return "Already started"
	case AdvertiseDataTooLarge:
		return "Data too large"
	case AdvertiseFeatureUnsupported:
		return "Feature unsupported"
	case AdvertiseInternalError:
		return "Internal error"
	case AdvertiseTooManyAdvertisers:
		return "Too many advertisers"
	default:
		return fmt.Sprintf("Unknown error: %d", e.Code)
	}
}

func (e *AdvertiseError) Error() string {
	if e.Err == nil {
		return e.Reason()
	}
	return fmt.Sprintf("%s: %v", e.Reason(), e.Err)
}

func (e *AdvertiseError) Unwrap() error {
	return e.Err
}

// failureReason picks the text reported in an advertisingFailed signal.
func failureReason(err error) string {
	var aerr *AdvertiseError
	if errors.As(err, &aerr) {
		return aerr.Reason()
	}
	return err.Error()
}
