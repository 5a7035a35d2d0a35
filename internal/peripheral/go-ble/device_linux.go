//go:build linux

package goble

import (
	"net"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/go-ble/ble/linux/hci/evt"

	"github.com/srg/blechat/internal/peripheral"
)

// rolePeripheral is the LE Connection Complete role of a link the local
// controller accepted as slave.
const rolePeripheral = 0x01

func newPlatformDevice(opts ...ble.Option) (ble.Device, error) {
	return linux.NewDevice(opts...)
}

// linkOptions reports HCI link events to s, so a central is tracked from
// Connection Complete rather than from its first GATT request.
func linkOptions(s *Stack) []ble.Option {
	return []ble.Option{
		ble.OptConnectHandler(func(e evt.LEConnectionComplete) {
			if e.Status() != 0x00 || e.Role() != rolePeripheral {
				return
			}
			s.linkConnected(peerAddress(e), e.ConnectionHandle())
		}),
		ble.OptDisconnectHandler(func(e evt.DisconnectionComplete) {
			s.linkDisconnected(e.ConnectionHandle())
		}),
	}
}

// peerAddress renders the little-endian peer address the way hci.Conn.RemoteAddr does.
func peerAddress(e evt.LEConnectionComplete) string {
	a := e.PeerAddress()
	hw := net.HardwareAddr([]byte{a[5], a[4], a[3], a[2], a[1], a[0]})
	return peripheral.NewIdentity(hw.String()).String()
}
