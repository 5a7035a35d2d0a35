//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newPlatformDevice(opts ...ble.Option) (ble.Device, error) {
	return darwin.NewDevice(opts...)
}

// linkOptions is empty: CoreBluetooth rejects connect and disconnect handlers,
// so centrals are discovered from their first GATT request.
func linkOptions(*Stack) []ble.Option {
	return nil
}
