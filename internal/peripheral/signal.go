package peripheral

// SignalKind names an outward notification to the host shell.
type SignalKind string

const (
	SignalDeviceConnected       SignalKind = "deviceConnected"
	SignalDeviceDisconnected    SignalKind = "deviceDisconnected"
	SignalMessageReceived       SignalKind = "messageReceived"
	SignalNotificationsEnabled  SignalKind = "notificationsEnabled"
	SignalNotificationsDisabled SignalKind = "notificationsDisabled"
	SignalAdvertisingStarted    SignalKind = "advertisingStarted"
	SignalAdvertisingFailed     SignalKind = "advertisingFailed"
)

// Signal is a fire-and-forget notification emitted by a Session.
// Signals for one device are delivered in order; there is no ordering across devices.
type Signal struct {
	Kind    SignalKind `json:"kind"`
	Address string     `json:"address,omitempty"`
	Text    string     `json:"text,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

func deviceSignal(kind SignalKind, id DeviceIdentity) Signal {
	return Signal{Kind: kind, Address: id.String()}
}
