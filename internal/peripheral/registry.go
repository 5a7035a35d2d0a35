package peripheral

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// EnableResult reports the outcome of a subscription request.
type EnableResult int

const (
	// Enabled means the identity was added to the subscriber set.
	Enabled EnableResult = iota
	// AlreadySubscribed means the identity was a subscriber before the call.
	AlreadySubscribed
	// RejectedNotConnected means the identity is not in the connection registry.
	RejectedNotConnected
)

func (r EnableResult) String() string {
	switch r {
	case Enabled:
		return "enabled"
	case AlreadySubscribed:
		return "already_subscribed"
	case RejectedNotConnected:
		return "rejected_not_connected"
	default:
		return "unknown"
	}
}

// connectionRegistry maps identities to their live handle in connection order.
// It is not safe for concurrent use; Session guards it together with the
// subscription registry under one mutex.
type connectionRegistry struct {
	entries *orderedmap.OrderedMap[DeviceIdentity, ConnectionHandle]
	subs    *subscriptionRegistry
}

// subscriptionRegistry is the ordered set of identities with notifications enabled.
// Membership implies membership in conns.
type subscriptionRegistry struct {
	members *orderedmap.OrderedMap[DeviceIdentity, struct{}]
	conns   *connectionRegistry
}

// newRegistries returns a linked, empty pair of registries.
func newRegistries() (*connectionRegistry, *subscriptionRegistry) {
	conns := &connectionRegistry{
		entries: orderedmap.New[DeviceIdentity, ConnectionHandle](),
	}
	subs := &subscriptionRegistry{
		members: orderedmap.New[DeviceIdentity, struct{}](),
		conns:   conns,
	}
	conns.subs = subs
	return conns, subs
}

// onConnect records a connection. A known identity is evicted first, together
// with its subscription, and the new handle takes its place. The result is
// false when the identity was already tracked.
func (r *connectionRegistry) onConnect(id DeviceIdentity, h ConnectionHandle) bool {
	_, existed := r.entries.Get(id)
	if existed {
		r.entries.Delete(id)
		r.subs.removeForDisconnect(id)
	}
	r.entries.Set(id, h)
	return !existed
}

// onDisconnect drops the identity from both registries. Unknown identities are a no-op.
func (r *connectionRegistry) onDisconnect(id DeviceIdentity) bool {
	r.subs.removeForDisconnect(id)
	_, removed := r.entries.Delete(id)
	return removed
}

func (r *connectionRegistry) isConnected(id DeviceIdentity) bool {
	_, ok := r.entries.Get(id)
	return ok
}

func (r *connectionRegistry) handle(id DeviceIdentity) (ConnectionHandle, bool) {
	return r.entries.Get(id)
}

func (r *connectionRegistry) len() int {
	return r.entries.Len()
}

// snapshot copies the connected identities in connection order.
func (r *connectionRegistry) snapshot() []DeviceIdentity {
	out := make([]DeviceIdentity, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (r *connectionRegistry) clear() {
	r.entries = orderedmap.New[DeviceIdentity, ConnectionHandle]()
	r.subs.members = orderedmap.New[DeviceIdentity, struct{}]()
}

// enable subscribes a connected identity.
func (r *subscriptionRegistry) enable(id DeviceIdentity) EnableResult {
	if !r.conns.isConnected(id) {
		return RejectedNotConnected
	}
	if _, ok := r.members.Get(id); ok {
		return AlreadySubscribed
	}
	r.members.Set(id, struct{}{})
	return Enabled
}

// disable unsubscribes the identity and reports whether it was subscribed.
func (r *subscriptionRegistry) disable(id DeviceIdentity) bool {
	_, removed := r.members.Delete(id)
	return removed
}

func (r *subscriptionRegistry) removeForDisconnect(id DeviceIdentity) {
	r.members.Delete(id)
}

func (r *subscriptionRegistry) contains(id DeviceIdentity) bool {
	_, ok := r.members.Get(id)
	return ok
}

func (r *subscriptionRegistry) len() int {
	return r.members.Len()
}

// subscribers copies the subscribed identities in subscription order.
func (r *subscriptionRegistry) subscribers() []DeviceIdentity {
	out := make([]DeviceIdentity, 0, r.members.Len())
	for pair := r.members.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
