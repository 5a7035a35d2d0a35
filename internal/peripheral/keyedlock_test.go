package peripheral

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLockSerializesSameIdentity(t *testing.T) {
	// GOAL: Verify holders of one identity lock are mutually exclusive
	//
	// TEST SCENARIO: 16 goroutines increment a counter under the same identity lock → never more than one inside
	k := newKeyedLock()
	id := NewIdentity("AA:BB")

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock(id)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside)
	assert.Zero(t, k.len(), "an identity nobody holds MUST leave the table")
}

func TestKeyedLockIndependentIdentities(t *testing.T) {
	k := newKeyedLock()
	unlockA := k.lock(NewIdentity("AA"))
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.lock(NewIdentity("BB"))
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another identity MUST NOT wait")
	}
}

func TestKeyedLockReleasesRotatingIdentities(t *testing.T) {
	// GOAL: Verify the table only holds identities that are locked or awaited
	//
	// TEST SCENARIO: 100 distinct addresses locked and released → empty table; held lock with a waiter → entry kept until both release
	k := newKeyedLock()
	for i := 0; i < 100; i++ {
		unlock := k.lock(NewIdentity(fmt.Sprintf("AA:BB:CC:DD:EE:%02X", i)))
		unlock()
	}
	assert.Zero(t, k.len(), "released identities MUST NOT accumulate")

	id := NewIdentity("AA:BB")
	unlock := k.lock(id)

	acquired := make(chan func())
	go func() { acquired <- k.lock(id) }()
	assert.Eventually(t, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		return k.locks[id.String()].refs == 2
	}, time.Second, time.Millisecond)

	unlock()
	second := <-acquired
	assert.Equal(t, 1, k.len(), "an entry with a holder MUST stay")

	second()
	assert.Zero(t, k.len())
}
