//go:build test

package testutils

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/srg/blechat/internal/peripheral"
)

// MockStack is a testify mock of peripheral.Stack. Open captures the event
// handler so tests can inject stack callbacks with Emit.
//
// SendResponse and Notify calls are also logged under mu, since mock.Mock
// keeps its own lock unexported and Calls may be appended to concurrently.
type MockStack struct {
	mock.Mock

	mu      sync.Mutex
	handler func(peripheral.Event)
	sent    []mock.Call
}

func NewMockStack() *MockStack {
	return &MockStack{}
}

// StubDefaults makes every lifecycle call and SendResponse succeed. Notify is
// left unstubbed so each test states its delivery outcome.
func (m *MockStack) StubDefaults() *MockStack {
	m.On("Open", mock.Anything).Return(nil).Maybe()
	m.On("RegisterService", mock.Anything).Return(nil).Maybe()
	m.On("StartAdvertising", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("StopAdvertising").Return(nil).Maybe()
	m.On("Close").Return(nil).Maybe()
	m.On("SendResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

func (m *MockStack) Open(ctx context.Context, handler func(peripheral.Event)) error {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
	return m.Called(ctx).Error(0)
}

func (m *MockStack) RegisterService(def peripheral.ServiceDefinition) error {
	return m.Called(def).Error(0)
}

func (m *MockStack) StartAdvertising(ctx context.Context, cfg peripheral.AdvertisingConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *MockStack) StopAdvertising() error {
	return m.Called().Error(0)
}

func (m *MockStack) SendResponse(h peripheral.ConnectionHandle, requestID int, status peripheral.Status, offset int, value []byte) error {
	m.record("SendResponse", h, requestID, status, offset, value)
	return m.Called(h, requestID, status, offset, value).Error(0)
}

func (m *MockStack) Notify(h peripheral.ConnectionHandle, value []byte) (peripheral.Status, error) {
	m.record("Notify", h, value)
	args := m.Called(h, value)
	return args.Get(0).(peripheral.Status), args.Error(1)
}

func (m *MockStack) Close() error {
	return m.Called().Error(0)
}

// Emit delivers ev to the handler installed by Open, as the radio stack would.
func (m *MockStack) Emit(ev peripheral.Event) {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		panic("testutils: MockStack.Emit called before Open")
	}
	handler(ev)
}

func (m *MockStack) record(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mock.Call{Method: method, Arguments: args})
}

// sentCalls returns a copy of the logged SendResponse and Notify calls.
func (m *MockStack) sentCalls() []mock.Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mock.Call(nil), m.sent...)
}

// Responses returns the SendResponse calls made for the given request ID.
func (m *MockStack) Responses(requestID int) []mock.Call {
	var out []mock.Call
	for _, c := range m.sentCalls() {
		if c.Method == "SendResponse" && c.Arguments.Int(1) == requestID {
			out = append(out, c)
		}
	}
	return out
}

// NotifyCount returns how many Notify calls targeted addr.
func (m *MockStack) NotifyCount(addr string) int {
	want := peripheral.NewIdentity(addr)
	n := 0
	for _, c := range m.sentCalls() {
		if c.Method != "Notify" {
			continue
		}
		if h, ok := c.Arguments.Get(0).(peripheral.ConnectionHandle); ok && peripheral.IdentityOf(h) == want {
			n++
		}
	}
	return n
}
