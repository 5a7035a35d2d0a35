//go:build test

package testutils

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blechat/internal/peripheral"
)

// PeripheralSessionSuite is a reusable suite that runs a peripheral.Session on
// a MockStack. Stack callbacks are injected through helpers that mirror what a
// central does over the air.
//
//	type ChatSuite struct {
//	    testutils.PeripheralSessionSuite
//	}
//
//	func (s *ChatSuite) TestHello() {
//	    s.StartSession()
//	    h := s.Connect("AA:BB")
//	    s.Subscribe(h)
//	    s.ExpectNotify("AA:BB", peripheral.StatusSuccess, nil)
//	    report, err := s.Session.SendMessage("hi", false)
//	    ...
//	}
type PeripheralSessionSuite struct {
	suite.Suite

	Helper  *TestHelper
	Logger  *logrus.Logger
	Stack   *MockStack
	Session *peripheral.Session
	Options peripheral.Options

	requestID int
}

// SetupTest creates a stopped session with zero startup delays.
func (s *PeripheralSessionSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger

	s.Options = peripheral.DefaultOptions()
	s.Options.ServerReadyDelay = 0
	s.Options.SettleInterval = 0

	s.Stack = NewMockStack().StubDefaults()
	s.Session = peripheral.NewSession(s.Stack, s.Logger, s.Options)
}

func (s *PeripheralSessionSuite) TearDownTest() {
	if s.Session != nil {
		s.Session.Stop()
	}
}

// StartSession starts the session, confirms advertising and discards the startup signals.
func (s *PeripheralSessionSuite) StartSession() {
	s.Require().NoError(s.Session.Start(context.Background()), "session MUST start")
	s.Stack.Emit(peripheral.AdvertiseStartResult{})
	s.Require().Equal(peripheral.StateAdvertising, s.Session.State())
	s.Signals()
}

// Signals drains the buffered signals.
func (s *PeripheralSessionSuite) Signals() []peripheral.Signal {
	return DrainSignals(s.Session.Signals())
}

// WaitSignal waits for a signal of kind.
func (s *PeripheralSessionSuite) WaitSignal(kind peripheral.SignalKind) peripheral.Signal {
	sig, ok := WaitSignal(s.Session.Signals(), kind, 2*time.Second)
	s.Require().True(ok, "signal %s MUST arrive", kind)
	return sig
}

// NextRequestID returns a request ID unique within the test.
func (s *PeripheralSessionSuite) NextRequestID() int {
	s.requestID++
	return s.requestID
}

// Connect emits a connect event for a fresh handle and returns it.
func (s *PeripheralSessionSuite) Connect(addr string) *FakeHandle {
	h := NewHandle(addr)
	s.Stack.Emit(peripheral.ConnectionStateChanged{Handle: h, State: peripheral.LinkConnected})
	return h
}

func (s *PeripheralSessionSuite) Disconnect(h peripheral.ConnectionHandle) {
	s.Stack.Emit(peripheral.ConnectionStateChanged{Handle: h, State: peripheral.LinkDisconnected})
}

// Subscribe writes the enable value to the CCCD and returns the request ID.
func (s *PeripheralSessionSuite) Subscribe(h peripheral.ConnectionHandle) int {
	return s.WriteCCCD(h, peripheral.EnableNotificationValue)
}

// Unsubscribe writes the disable value to the CCCD and returns the request ID.
func (s *PeripheralSessionSuite) Unsubscribe(h peripheral.ConnectionHandle) int {
	return s.WriteCCCD(h, peripheral.DisableNotificationValue)
}

func (s *PeripheralSessionSuite) WriteCCCD(h peripheral.ConnectionHandle, value []byte) int {
	id := s.NextRequestID()
	s.Stack.Emit(peripheral.DescriptorWriteRequest{
		Handle:         h,
		RequestID:      id,
		Descriptor:     "00002902-0000-1000-8000-00805f9b34fb",
		Value:          value,
		ResponseNeeded: true,
	})
	return id
}

// Write sends a chat message from h and returns the request ID.
func (s *PeripheralSessionSuite) Write(h peripheral.ConnectionHandle, text string, responseNeeded bool) int {
	id := s.NextRequestID()
	s.Stack.Emit(peripheral.CharacteristicWriteRequest{
		Handle:         h,
		RequestID:      id,
		Value:          []byte(text),
		ResponseNeeded: responseNeeded,
	})
	return id
}

// ExpectNotify sets the outcome of every notification to addr. The first
// expectation registered for an address wins.
func (s *PeripheralSessionSuite) ExpectNotify(addr string, status peripheral.Status, err error) {
	s.Stack.On("Notify", HandleFor(addr), mock.Anything).Return(status, err)
}

// AssertInvariant checks that every subscriber is connected.
func (s *PeripheralSessionSuite) AssertInvariant() {
	for _, id := range s.Session.Subscribers() {
		s.True(s.Session.IsConnected(id), "subscriber %s MUST be connected", id)
	}
}
