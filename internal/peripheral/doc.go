// Package peripheral implements the server side of a BLE GATT chat channel.
//
// A Session owns two registries: the set of connected centrals and the subset of
// those that enabled notifications through the characteristic's CCCD. Stack
// callbacks are fed to Session.HandleEvent as explicit Event values; host commands
// are Start, Stop and SendMessage. Outward signals (device connected, message
// received, advertising started, ...) are published on a non-blocking channel
// returned by Session.Signals.
//
// Both registries live behind a single session mutex. Operations on one device
// identity are additionally serialized by a per-identity lock, so a broadcast's
// send-then-evict sequence for a device is atomic with respect to connect,
// disconnect and (un)subscribe events for that same device, while events for
// other devices proceed.
package peripheral
