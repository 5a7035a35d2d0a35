package peripheral

// Event is a raw GATT protocol event delivered by a Stack.
// The set of implementations is closed; see Session.HandleEvent.
type Event interface {
	gattEvent()
}

// LinkState is the new state reported by a connection-state change.
type LinkState int

const (
	LinkDisconnected LinkState = iota
	LinkConnected
)

func (s LinkState) String() string {
	switch s {
	case LinkDisconnected:
		return "disconnected"
	case LinkConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectionStateChanged reports a central connecting or disconnecting.
type ConnectionStateChanged struct {
	Handle ConnectionHandle
	Status int
	State  LinkState
}

// CharacteristicReadRequest asks for the chat characteristic's readable value.
type CharacteristicReadRequest struct {
	Handle    ConnectionHandle
	RequestID int
	Offset    int
}

// CharacteristicWriteRequest carries an inbound chat message.
type CharacteristicWriteRequest struct {
	Handle         ConnectionHandle
	RequestID      int
	Offset         int
	Value          []byte
	PreparedWrite  bool
	ResponseNeeded bool
}

// DescriptorWriteRequest is a write to a descriptor of the chat characteristic.
// Descriptor holds the descriptor UUID in any textual form accepted by NormalizeUUID.
type DescriptorWriteRequest struct {
	Handle         ConnectionHandle
	RequestID      int
	Descriptor     string
	Offset         int
	Value          []byte
	ResponseNeeded bool
}

// DescriptorReadRequest is a read of the chat characteristic's CCCD.
type DescriptorReadRequest struct {
	Handle    ConnectionHandle
	RequestID int
	Offset    int
}

// AdvertiseStartResult reports whether advertising came up. A nil Err is success.
type AdvertiseStartResult struct {
	Err error
}

func (ConnectionStateChanged) gattEvent()     {}
func (CharacteristicReadRequest) gattEvent()  {}
func (CharacteristicWriteRequest) gattEvent() {}
func (DescriptorWriteRequest) gattEvent()     {}
func (DescriptorReadRequest) gattEvent()      {}
func (AdvertiseStartResult) gattEvent()       {}
