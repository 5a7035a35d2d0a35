package peripheral

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/srg/blechat/internal/ringchan"
)

// State is the session lifecycle flag.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateAdvertising
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateAdvertising:
		return "advertising"
	default:
		return "unknown"
	}
}

// Default chat service layout and advertisement values.
const (
	DefaultDeviceName         = "BO_Chat"
	DefaultServiceUUID        = "12345678-1234-1234-1234-123456789abc"
	DefaultCharacteristicUUID = "87654321-4321-4321-4321-cba987654321"
	DefaultReadGreeting       = "Hello from peripheral"
	DefaultServerReadyDelay   = 100 * time.Millisecond
	DefaultSettleInterval     = 500 * time.Millisecond
	DefaultSignalBuffer       = 128
)

// Options configures a Session.
type Options struct {
	Service     ServiceDefinition
	Advertising AdvertisingConfig

	// ReadGreeting is the characteristic value served to reads until a direct write replaces it.
	ReadGreeting string

	// ServerReadyDelay is waited after Stack.Open, SettleInterval between service
	// registration and advertising.
	ServerReadyDelay time.Duration
	SettleInterval   time.Duration

	// SignalBuffer bounds the signal channel; the oldest signal is dropped when full.
	SignalBuffer int
}

// DefaultOptions returns the BO_Chat service layout and startup timings.
func DefaultOptions() Options {
	return Options{
		Service: ServiceDefinition{
			ServiceUUID:        DefaultServiceUUID,
			CharacteristicUUID: DefaultCharacteristicUUID,
		},
		Advertising: AdvertisingConfig{
			DeviceName:  DefaultDeviceName,
			ServiceUUID: DefaultServiceUUID,
			Connectable: true,
			LowLatency:  true,
		},
		ReadGreeting:     DefaultReadGreeting,
		ServerReadyDelay: DefaultServerReadyDelay,
		SettleInterval:   DefaultSettleInterval,
		SignalBuffer:     DefaultSignalBuffer,
	}
}

// Session is the peripheral session: both registries, the lifecycle flag and
// the signal channel. A Session can be started again after Stop.
type Session struct {
	stack   Stack
	logger  *logrus.Logger
	opts    Options
	signals *ringchan.RingChannel[Signal]
	keys    *keyedLock

	lifecycle sync.Mutex // serializes Start and Stop

	mu        sync.Mutex // guards everything below; conns and subs form one critical section
	state     State
	id        string
	conns     *connectionRegistry
	subs      *subscriptionRegistry
	readValue []byte
	advCancel context.CancelFunc
}

// NewSession creates a stopped session on top of stack.
func NewSession(stack Stack, logger *logrus.Logger, opts Options) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.SignalBuffer <= 0 {
		opts.SignalBuffer = DefaultSignalBuffer
	}
	if opts.ReadGreeting == "" {
		opts.ReadGreeting = DefaultReadGreeting
	}

	conns, subs := newRegistries()
	return &Session{
		stack:   stack,
		logger:  logger,
		opts:    opts,
		signals: ringchan.New[Signal](opts.SignalBuffer),
		keys:    newKeyedLock(),
		conns:   conns,
		subs:    subs,
	}
}

// Start brings the GATT server up and requests advertising. It returns once
// advertising has been requested; the outcome arrives as an advertisingStarted
// or advertisingFailed signal. A setup failure tears the session down and is
// returned as a *SetupError.
//
// ctx bounds the setup phase only; a running session lives until Stop.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.conns, s.subs = newRegistries()
	s.state = StateStarting
	s.id = uuid.NewString()
	s.readValue = []byte(s.opts.ReadGreeting)
	advCtx, advCancel := context.WithCancel(context.WithoutCancel(ctx))
	s.advCancel = advCancel
	sessionID := s.id
	s.mu.Unlock()

	logger := s.logger.WithField("session", sessionID)
	logger.WithFields(logrus.Fields{
		"service":        s.opts.Service.ServiceUUID,
		"characteristic": s.opts.Service.CharacteristicUUID,
		"name":           s.opts.Advertising.DeviceName,
	}).Info("Starting peripheral")

	if err := s.stack.Open(ctx, s.HandleEvent); err != nil {
		return s.failSetup(sessionID, asSetupError(err, SetupAdapterDisabled))
	}

	if err := sleepContext(ctx, s.opts.ServerReadyDelay); err != nil {
		s.teardown(sessionID)
		return err
	}

	if err := s.stack.RegisterService(s.opts.Service); err != nil {
		return s.failSetup(sessionID, asSetupError(err, SetupServiceRejected))
	}
	logger.Debug("Service registered")

	if err := sleepContext(ctx, s.opts.SettleInterval); err != nil {
		s.teardown(sessionID)
		return err
	}

	if err := s.stack.StartAdvertising(advCtx, s.opts.Advertising); err != nil {
		return s.failSetup(sessionID, asSetupError(err, SetupAdvertiseFailed))
	}
	logger.Debug("Advertising requested")
	return nil
}

// Stop tears the session down: advertising stops, the stack is closed and both
// registries are cleared. It is a no-op on a stopped session.
func (s *Session) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	sessionID := s.id
	s.mu.Unlock()

	if s.teardown(sessionID) {
		s.logger.WithField("session", sessionID).Info("Peripheral stopped")
	}
}

// Close stops the session and closes the signal channel. The session cannot be
// restarted afterwards.
func (s *Session) Close() {
	s.Stop()
	s.signals.Close()
}

// failSetup tears down and reports err as advertisingFailed.
func (s *Session) failSetup(sessionID string, err *SetupError) error {
	s.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"kind":    err.Kind,
	}).WithError(err).Error("Peripheral setup failed")

	if s.teardown(sessionID) {
		s.emit(Signal{Kind: SignalAdvertisingFailed, Reason: failureReason(err)})
	}
	return err
}

// teardown moves the session identified by sessionID to Stopped and releases
// the stack. Only the caller that performs the transition releases anything;
// late callers for an old session get false.
func (s *Session) teardown(sessionID string) bool {
	s.mu.Lock()
	if s.state == StateStopped || s.id != sessionID {
		s.mu.Unlock()
		return false
	}
	s.state = StateStopped
	s.conns.clear()
	cancel := s.advCancel
	s.advCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	logger := s.logger.WithField("session", sessionID)
	if err := s.stack.StopAdvertising(); err != nil {
		logger.WithError(err).Warn("Failed to stop advertising")
	}
	if err := s.stack.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close BLE stack")
	}
	return true
}

// Signals returns the outward signal channel. It is closed by Close.
func (s *Session) Signals() <-chan Signal {
	return s.signals.C()
}

// SignalMetrics reports signal channel traffic, including signals dropped on overflow.
func (s *Session) SignalMetrics() ringchan.Metrics {
	return s.signals.Metrics()
}

// State returns the lifecycle flag.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ID returns the identifier of the current or last started session, or "" if never started.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Connections returns the connected identities in connection order.
func (s *Session) Connections() []DeviceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns.snapshot()
}

// Subscribers returns the subscribed identities in subscription order.
func (s *Session) Subscribers() []DeviceIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs.subscribers()
}

// IsConnected reports whether id is in the connection registry.
func (s *Session) IsConnected(id DeviceIdentity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns.isConnected(id)
}

// ReadValue returns a copy of the characteristic's readable value.
func (s *Session) ReadValue() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.readValue...)
}

// String renders a one-line status summary.
func (s *Session) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%s, %d connected, %d subscribed", s.state, s.conns.len(), s.subs.len())
}

func (s *Session) emit(sig Signal) {
	if s.signals.Send(sig) {
		s.logger.WithField("kind", sig.Kind).Warn("Signal buffer full, dropped oldest signal")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
