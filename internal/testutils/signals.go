//go:build test

package testutils

import (
	"time"

	"github.com/srg/blechat/internal/peripheral"
)

// DrainSignals returns every signal currently buffered on ch without blocking.
func DrainSignals(ch <-chan peripheral.Signal) []peripheral.Signal {
	var out []peripheral.Signal
	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, sig)
		default:
			return out
		}
	}
}

// WaitSignal blocks until a signal of kind arrives on ch or timeout expires.
// Signals of other kinds are discarded.
func WaitSignal(ch <-chan peripheral.Signal, kind peripheral.SignalKind, timeout time.Duration) (peripheral.Signal, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return peripheral.Signal{}, false
			}
			if sig.Kind == kind {
				return sig, true
			}
		case <-deadline.C:
			return peripheral.Signal{}, false
		}
	}
}

// Kinds projects signals to their kinds, keeping order.
func Kinds(signals []peripheral.Signal) []peripheral.SignalKind {
	out := make([]peripheral.SignalKind, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Kind)
	}
	return out
}

// CountKind counts signals of kind for addr. An empty addr matches any address.
func CountKind(signals []peripheral.Signal, kind peripheral.SignalKind, addr string) int {
	n := 0
	for _, s := range signals {
		if s.Kind == kind && (addr == "" || s.Address == peripheral.NewIdentity(addr).String()) {
			n++
		}
	}
	return n
}
