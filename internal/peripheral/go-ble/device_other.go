//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"

	"github.com/srg/blechat/internal/peripheral"
)

func newPlatformDevice(...ble.Option) (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE peripheral support on %s", peripheral.ErrAdvertisingUnsupported, runtime.GOOS)
}

func linkOptions(*Stack) []ble.Option {
	return nil
}
