//go:build test

package testutils

import (
	"fmt"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/srg/blechat/internal/peripheral"
)

var handleGen atomic.Int64

// FakeHandle is a connection handle owned by a test. Every NewHandle call
// returns a distinct object, so two handles for one address model a reconnect.
type FakeHandle struct {
	Addr string
	Gen  int64
}

func NewHandle(addr string) *FakeHandle {
	return &FakeHandle{Addr: addr, Gen: handleGen.Add(1)}
}

func (h *FakeHandle) Address() string {
	return h.Addr
}

func (h *FakeHandle) String() string {
	return fmt.Sprintf("%s#%d", h.Addr, h.Gen)
}

// HandleFor matches any handle that resolves to addr.
func HandleFor(addr string) interface{} {
	want := peripheral.NewIdentity(addr)
	return mock.MatchedBy(func(h peripheral.ConnectionHandle) bool {
		return h != nil && peripheral.IdentityOf(h) == want
	})
}

// Identities builds identities from addresses.
func Identities(addrs ...string) []peripheral.DeviceIdentity {
	out := make([]peripheral.DeviceIdentity, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, peripheral.NewIdentity(a))
	}
	return out
}
