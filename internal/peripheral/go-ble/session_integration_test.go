//go:build test

package goble

import (
	"context"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blechat/internal/peripheral"
	"github.com/srg/blechat/internal/testutils"
)

// TestSessionOverGoBLE runs a full chat exchange through the go-ble binding.
//
// GOAL: Verify the session and the go-ble stack agree on connections, reads, writes and notifications
//
// TEST SCENARIO: start → read greeting → enable notify → write message → broadcast → link drops → registries empty → stop releases the device
func TestSessionOverGoBLE(t *testing.T) {
	helper := testutils.NewTestHelper(t)
	dev := newFakeDevice()

	original := DeviceFactory
	DeviceFactory = func(...ble.Option) (ble.Device, error) { return dev, nil }
	t.Cleanup(func() { DeviceFactory = original })

	opts := peripheral.DefaultOptions()
	opts.ServerReadyDelay, opts.SettleInterval = 0, 0

	stack := NewStack(helper.Logger, WithAdvertiseStartGrace(10*time.Millisecond))
	session := peripheral.NewSession(stack, helper.Logger, opts)
	t.Cleanup(session.Close)

	require.NoError(t, session.Start(context.Background()))
	_, ok := testutils.WaitSignal(session.Signals(), peripheral.SignalAdvertisingStarted, 2*time.Second)
	require.True(t, ok, "advertisingStarted MUST be signalled once advertising runs")
	require.Equal(t, peripheral.StateAdvertising, session.State())

	char := dev.characteristic()
	require.NotNil(t, char)
	conn := newFakeConn("aa:bb:cc:dd:ee:ff")
	id := peripheral.NewIdentity("AA:BB:CC:DD:EE:FF")

	rsp := &fakeResponse{}
	char.ReadHandler.ServeRead(&fakeRequest{conn: conn}, rsp)
	assert.Equal(t, peripheral.DefaultReadGreeting, rsp.buf.String())
	sig, ok := testutils.WaitSignal(session.Signals(), peripheral.SignalDeviceConnected, time.Second)
	require.True(t, ok)
	assert.Equal(t, id.String(), sig.Address)
	assert.True(t, session.IsConnected(id))

	n := newFakeNotifier(0)
	go char.NotifyHandler.ServeNotify(&fakeRequest{conn: conn}, n)
	_, ok = testutils.WaitSignal(session.Signals(), peripheral.SignalNotificationsEnabled, time.Second)
	require.True(t, ok, "notify handler MUST enable notifications")

	char.WriteHandler.ServeWrite(&fakeRequest{conn: conn, data: []byte("hi from central")}, &fakeResponse{})
	sig, ok = testutils.WaitSignal(session.Signals(), peripheral.SignalMessageReceived, time.Second)
	require.True(t, ok)
	assert.Equal(t, "hi from central", sig.Text)

	report, err := session.SendMessage("hello central", false)
	require.NoError(t, err)
	assert.Equal(t, peripheral.OutcomeSent, report.Outcome)
	assert.Equal(t, []peripheral.DeviceIdentity{id}, report.Delivered)
	assert.Equal(t, [][]byte{[]byte("hello central")}, n.written())

	conn.drop()
	_, ok = testutils.WaitSignal(session.Signals(), peripheral.SignalDeviceDisconnected, time.Second)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return len(session.Connections()) == 0 && len(session.Subscribers()) == 0
	}, time.Second, 5*time.Millisecond, "a dropped link MUST leave both registries")

	report, err = session.SendMessage("anyone?", false)
	require.NoError(t, err)
	assert.Equal(t, peripheral.OutcomeNoConnections, report.Outcome)

	session.Stop()
	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.True(t, dev.stopped, "Stop MUST release the BLE device")
}
