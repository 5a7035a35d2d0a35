package peripheral

import (
	"sync"
)

// keyedLock serializes work per device identity. An entry lives while some
// goroutine holds or waits for it, so rotating private addresses do not grow
// the table.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int // holders plus waiters, guarded by keyedLock.mu
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*keyedEntry)}
}

// lock acquires the identity's mutex and returns its release func.
func (k *keyedLock) lock(id DeviceIdentity) func() {
	key := id.String()

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		defer k.mu.Unlock()
		if e.refs--; e.refs == 0 {
			delete(k.locks, key)
		}
	}
}

func (k *keyedLock) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
