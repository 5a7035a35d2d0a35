package peripheral

import "strings"

// ConnectionHandle is an opaque reference to a live link-layer connection.
// Handles are owned by the Stack. Distinct handle values may refer to the same
// physical device, so the registries never key on them.
type ConnectionHandle interface {
	Address() string
}

// DeviceIdentity is the stable, address-based key of a central.
// Two identities are equal when their normalized addresses are equal.
type DeviceIdentity struct {
	addr string
}

// NewIdentity builds an identity from a textual hardware address.
func NewIdentity(address string) DeviceIdentity {
	a := strings.ToUpper(strings.TrimSpace(address))
	return DeviceIdentity{addr: strings.ReplaceAll(a, "-", ":")}
}

// IdentityOf resolves a connection handle to its device identity.
// Passing a nil handle is a programming error.
func IdentityOf(h ConnectionHandle) DeviceIdentity {
	if h == nil {
		panic("peripheral: IdentityOf called with nil handle")
	}
	return NewIdentity(h.Address())
}

func (d DeviceIdentity) String() string {
	return d.addr
}

// IsZero reports whether the identity carries no address.
func (d DeviceIdentity) IsZero() bool {
	return d.addr == ""
}

// MarshalText renders the identity as its address.
func (d DeviceIdentity) MarshalText() ([]byte, error) {
	return []byte(d.addr), nil
}

// UnmarshalText parses and normalizes an address.
func (d *DeviceIdentity) UnmarshalText(text []byte) error {
	*d = NewIdentity(string(text))
	return nil
}
