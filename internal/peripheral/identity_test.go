package peripheral

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandle is a minimal ConnectionHandle. Distinct pointers with the same
// address model stack-level object churn.
type stubHandle struct {
	addr string
}

func (h *stubHandle) Address() string { return h.addr }

func TestIdentityOfCollapsesHandleChurn(t *testing.T) {
	// GOAL: Verify distinct handle objects for one device resolve to the same identity
	//
	// TEST SCENARIO: Two handles with differently formatted addresses → equal identities usable as map keys
	a := &stubHandle{addr: "aa:bb:cc:dd:ee:ff"}
	b := &stubHandle{addr: " AA-BB-CC-DD-EE-FF"}

	require.NotSame(t, a, b)
	assert.Equal(t, IdentityOf(a), IdentityOf(b), "identities MUST compare by normalized address")

	seen := map[DeviceIdentity]int{}
	seen[IdentityOf(a)]++
	seen[IdentityOf(b)]++
	assert.Len(t, seen, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", IdentityOf(a).String())
}

func TestIdentityOfNilHandlePanics(t *testing.T) {
	assert.Panics(t, func() { IdentityOf(nil) })
}

func TestIdentityText(t *testing.T) {
	id := NewIdentity("aa:bb")
	assert.False(t, id.IsZero())
	assert.True(t, DeviceIdentity{}.IsZero())

	data, err := json.Marshal([]DeviceIdentity{id})
	require.NoError(t, err)
	assert.JSONEq(t, `["AA:BB"]`, string(data))

	var back []DeviceIdentity
	require.NoError(t, json.Unmarshal([]byte(`["aa-bb"]`), &back))
	assert.Equal(t, []DeviceIdentity{id}, back)
}
