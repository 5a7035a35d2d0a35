package peripheral

import (
	"context"
	"time"
)

// Status is an ATT protocol status code.
type Status uint8

const (
	StatusSuccess       Status = 0x00
	StatusInvalidOffset Status = 0x07
	StatusUnlikely      Status = 0x0e
)

// CCCD values written by centrals.
var (
	EnableNotificationValue  = []byte{0x01, 0x00}
	DisableNotificationValue = []byte{0x00, 0x00}
)

// ServiceDefinition is the fixed GATT layout: one primary service holding one
// read/write/notify characteristic with a CCCD.
type ServiceDefinition struct {
	ServiceUUID        string
	CharacteristicUUID string
}

// AdvertisingConfig describes the advertisement. The defaults are connectable,
// low-latency, indefinite, with device name and service UUID and no TX power.
type AdvertisingConfig struct {
	DeviceName     string
	ServiceUUID    string
	Connectable    bool
	LowLatency     bool
	IncludeTxPower bool
	Timeout        time.Duration // 0 advertises until stopped
}

// Stack is the BLE radio stack seen from the session.
//
// Open installs the handler that receives every protocol event; the stack may
// call it from any goroutine. StartAdvertising returns once advertising has been
// requested and reports the outcome later as an AdvertiseStartResult event.
// Notify sends one unacknowledged notification and returns synchronously.
type Stack interface {
	Open(ctx context.Context, handler func(Event)) error
	RegisterService(def ServiceDefinition) error
	StartAdvertising(ctx context.Context, cfg AdvertisingConfig) error
	StopAdvertising() error
	SendResponse(h ConnectionHandle, requestID int, status Status, offset int, value []byte) error
	Notify(h ConnectionHandle, value []byte) (Status, error)
	Close() error
}
