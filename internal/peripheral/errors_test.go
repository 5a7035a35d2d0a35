package peripheral

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupErrorIsComparesKind(t *testing.T) {
	err := fmt.Errorf("start: %w", &SetupError{Kind: SetupAdapterDisabled, Err: errors.New("hci0 down")})

	assert.ErrorIs(t, err, ErrAdapterDisabled)
	assert.NotErrorIs(t, err, ErrServiceRejected)
	assert.True(t, IsSetupKind(err, SetupAdapterDisabled))
	assert.False(t, IsSetupKind(errors.New("plain"), SetupAdapterDisabled))
	assert.Equal(t, "adapter_disabled: hci0 down", errors.Unwrap(err).Error())
}

func TestAsSetupError(t *testing.T) {
	plain := errors.New("boom")
	got := asSetupError(plain, SetupServiceRejected)
	assert.Equal(t, SetupServiceRejected, got.Kind)
	assert.ErrorIs(t, got, plain)

	// A wrapped sentinel keeps its kind over the fallback.
	wrapped := fmt.Errorf("open: %w", ErrAdvertisingUnsupported)
	got = asSetupError(wrapped, SetupAdapterDisabled)
	assert.Equal(t, SetupAdvertisingUnsupported, got.Kind)
	assert.Contains(t, got.Error(), "open:")

	full := &SetupError{Kind: SetupAdvertiserUnavailable, Err: plain}
	assert.Same(t, full, asSetupError(full, SetupAdapterDisabled))
}

func TestAdvertiseErrorReason(t *testing.T) {
	tests := []struct {
		code     AdvertiseCode
		expected string
	}{
		{AdvertiseDataTooLarge, "Data too large"},
		{AdvertiseTooManyAdvertisers, "Too many advertisers"},
		{AdvertiseAlreadyStarted, "Already started"},
		{AdvertiseInternalError, "Internal error"},
		{AdvertiseFeatureUnsupported, "Feature unsupported"},
		{AdvertiseCode(42), "Unknown error: 42"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			err := &AdvertiseError{Code: tt.code}
			assert.Equal(t, tt.expected, err.Reason())
			assert.Equal(t, tt.expected, failureReason(&SetupError{Kind: SetupAdvertiseFailed, Err: err}))
		})
	}
}
