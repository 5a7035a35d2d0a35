package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/blechat/internal/groutine"
	"github.com/srg/blechat/internal/peripheral"
)

// DefaultAdvertiseStartGrace is how long advertising must run without error
// before it is reported as started.
const DefaultAdvertiseStartGrace = 250 * time.Millisecond

// DeviceFactory creates ble.Device instances with the stack's link options
// (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = newPlatformDevice

// Option configures a Stack.
type Option func(*Stack)

// WithAdvertiseStartGrace overrides DefaultAdvertiseStartGrace.
func WithAdvertiseStartGrace(d time.Duration) Option {
	return func(s *Stack) {
		s.startGrace = d
	}
}

// connHandle is the peripheral.ConnectionHandle for one link. A reconnect
// from the same address gets a new connHandle. Handles reported by HCI link
// events start without a ble.Conn and adopt the first one seen for their address.
type connHandle struct {
	conn ble.Conn
	addr string
	hci  bool // lifetime follows HCI link events instead of conn.Disconnected
}

func (h *connHandle) Address() string {
	return h.addr
}

// subscription is a live notify handler.
type subscription struct {
	handle   *connHandle
	notifier ble.Notifier
}

// pendingResponse is a go-ble response writer parked until the session answers.
type pendingResponse struct {
	rsp  ble.ResponseWriter
	read bool
}

// Stack implements peripheral.Stack on go-ble's GATT server.
//
// Where the platform reports HCI link events (Linux), a connection is tracked
// from LE Connection Complete until Disconnection Complete. Elsewhere go-ble
// only hands out handler callbacks, so connections are discovered from the
// first request on a ble.Conn and lost when Conn.Disconnected fires. The CCCD
// is managed by go-ble: a subscription is the lifetime of the notify handler.
type Stack struct {
	logger     *logrus.Logger
	startGrace time.Duration

	mu        sync.Mutex
	dev       ble.Device
	handler   func(peripheral.Event)
	ctx       context.Context
	cancel    context.CancelFunc
	advCancel context.CancelFunc

	trackMu   sync.Mutex // orders connect and disconnect dispatch per address
	conns     *hashmap.Map[string, *connHandle]
	links     *hashmap.Map[uint16, *connHandle]
	notifiers *hashmap.Map[string, *subscription]
	pending   *hashmap.Map[int, *pendingResponse]
	nextID    atomic.Int64
}

var _ peripheral.Stack = (*Stack)(nil)

// NewStack creates a closed stack. Open creates the ble.Device.
func NewStack(logger *logrus.Logger, opts ...Option) *Stack {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Stack{
		logger:     logger,
		startGrace: DefaultAdvertiseStartGrace,
		conns:      hashmap.New[string, *connHandle](),
		links:      hashmap.New[uint16, *connHandle](),
		notifiers:  hashmap.New[string, *subscription](),
		pending:    hashmap.New[int, *pendingResponse](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates the platform device and installs handler for protocol events.
func (s *Stack) Open(ctx context.Context, handler func(peripheral.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev != nil {
		return fmt.Errorf("%w: stack already open", peripheral.ErrAdvertiserUnavailable)
	}

	dev, err := DeviceFactory(linkOptions(s)...)
	if err != nil {
		return NormalizeError(err)
	}

	s.dev = dev
	s.handler = handler
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.logger.Debug("BLE device opened")
	return nil
}

// RegisterService adds the chat service with one read/write/notify characteristic.
func (s *Stack) RegisterService(def peripheral.ServiceDefinition) error {
	s.mu.Lock()
	dev := s.dev
	s.mu.Unlock()
	if dev == nil {
		return fmt.Errorf("%w: %w", peripheral.ErrServiceRejected, ErrNotOpen)
	}

	svcUUID, err := ble.Parse(def.ServiceUUID)
	if err != nil {
		return &peripheral.SetupError{Kind: peripheral.SetupServiceRejected, Err: fmt.Errorf("service UUID %q: %w", def.ServiceUUID, err)}
	}
	charUUID, err := ble.Parse(def.CharacteristicUUID)
	if err != nil {
		return &peripheral.SetupError{Kind: peripheral.SetupServiceRejected, Err: fmt.Errorf("characteristic UUID %q: %w", def.CharacteristicUUID, err)}
	}

	svc := ble.NewService(svcUUID)
	char := svc.NewCharacteristic(charUUID)
	char.HandleRead(ble.ReadHandlerFunc(s.serveRead))
	char.HandleWrite(ble.WriteHandlerFunc(s.serveWrite))
	char.HandleNotify(ble.NotifyHandlerFunc(s.serveNotify))

	if err := dev.AddService(svc); err != nil {
		return &peripheral.SetupError{Kind: peripheral.SetupServiceRejected, Err: NormalizeError(err)}
	}

	s.logger.WithFields(logrus.Fields{
		"service":        def.ServiceUUID,
		"characteristic": def.CharacteristicUUID,
	}).Debug("GATT service added")
	return nil
}

// StartAdvertising starts advertising in the background. An error within the
// start grace period is reported as a failed AdvertiseStartResult, otherwise
// advertising is reported as started.
func (s *Stack) StartAdvertising(ctx context.Context, cfg peripheral.AdvertisingConfig) error {
	svcUUID, err := ble.Parse(cfg.ServiceUUID)
	if err != nil {
		return &peripheral.SetupError{Kind: peripheral.SetupAdvertiseFailed, Err: fmt.Errorf("service UUID %q: %w", cfg.ServiceUUID, err)}
	}

	s.mu.Lock()
	dev, stackCtx := s.dev, s.ctx
	if dev == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", peripheral.ErrAdvertiserUnavailable, ErrNotOpen)
	}
	if s.advCancel != nil {
		s.mu.Unlock()
		return &peripheral.AdvertiseError{Code: peripheral.AdvertiseAlreadyStarted}
	}
	var advCtx context.Context
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		advCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	} else {
		advCtx, cancel = context.WithCancel(ctx)
	}
	s.advCancel = cancel
	s.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{
		"name":    cfg.DeviceName,
		"service": cfg.ServiceUUID,
	})
	if cfg.IncludeTxPower || !cfg.Connectable {
		logger.Warn("go-ble always advertises connectable without TX power")
	}

	result := make(chan error, 1)
	groutine.Go(advCtx, "advertise", s.logger, func(ctx context.Context) {
		result <- dev.AdvertiseNameAndServices(ctx, cfg.DeviceName, svcUUID)
	})

	groutine.Go(stackCtx, "advertise-result", s.logger, func(ctx context.Context) {
		grace := time.NewTimer(s.startGrace)
		defer grace.Stop()

		select {
		case err := <-result:
			if advCtx.Err() != nil {
				// Stopped before the grace period ended.
				return
			}
			if err == nil {
				err = errors.New("advertising ended unexpectedly")
			}
			logger.WithError(err).Warn("Advertising failed to start")
			s.dispatch(peripheral.AdvertiseStartResult{Err: advertiseError(err)})
			return
		case <-grace.C:
			logger.Debug("Advertising running")
			s.dispatch(peripheral.AdvertiseStartResult{})
		case <-ctx.Done():
			return
		}

		select {
		case err := <-result:
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				logger.Info("Advertising timeout reached")
			case err != nil && !errors.Is(err, context.Canceled):
				logger.WithError(err).Warn("Advertising stopped")
			default:
				logger.Debug("Advertising stopped")
			}
		case <-ctx.Done():
		}
	})
	return nil
}

// StopAdvertising cancels advertising. It is safe to call when not advertising.
func (s *Stack) StopAdvertising() error {
	s.mu.Lock()
	cancel := s.advCancel
	s.advCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Close stops advertising, removes the service and releases the device. Watchers
// exit on their own; Close does not wait for them.
func (s *Stack) Close() error {
	s.mu.Lock()
	dev, cancel, advCancel := s.dev, s.cancel, s.advCancel
	s.dev, s.handler, s.cancel, s.advCancel = nil, nil, nil, nil
	s.mu.Unlock()

	if advCancel != nil {
		advCancel()
	}
	if cancel != nil {
		cancel()
	}
	if dev == nil {
		return nil
	}

	s.trackMu.Lock()
	s.conns.Range(func(addr string, _ *connHandle) bool {
		s.conns.Del(addr)
		return true
	})
	s.notifiers.Range(func(addr string, _ *subscription) bool {
		s.notifiers.Del(addr)
		return true
	})
	s.links.Range(func(link uint16, _ *connHandle) bool {
		s.links.Del(link)
		return true
	})
	s.trackMu.Unlock()

	var errs []error
	if err := dev.RemoveAllServices(); err != nil {
		errs = append(errs, fmt.Errorf("remove services: %w", err))
	}
	if err := dev.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop device: %w", NormalizeError(err)))
	}
	s.logger.Debug("BLE device closed")
	return errors.Join(errs...)
}

// SendResponse answers a pending read or write. Write acknowledgements are
// sent by go-ble when the handler returns; only the status is applied here.
func (s *Stack) SendResponse(h peripheral.ConnectionHandle, requestID int, status peripheral.Status, offset int, value []byte) error {
	p, ok := s.pending.Get(requestID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRequest, requestID)
	}

	p.rsp.SetStatus(ble.ATTError(status))
	if !p.read || status != peripheral.StatusSuccess || len(value) == 0 {
		return nil
	}
	if c := p.rsp.Cap(); c > 0 && len(value) > c {
		value = value[:c]
	}
	if _, err := p.rsp.Write(value); err != nil {
		return NormalizeError(err)
	}
	return nil
}

// Notify sends value to the device's live notify handler, truncated to the
// notifier capacity.
func (s *Stack) Notify(h peripheral.ConnectionHandle, value []byte) (peripheral.Status, error) {
	ch, ok := h.(*connHandle)
	if !ok {
		return peripheral.StatusUnlikely, ErrForeignHandle
	}

	sub, ok := s.notifiers.Get(ch.addr)
	if !ok || sub.handle != ch {
		return peripheral.StatusUnlikely, fmt.Errorf("%w: %s", ErrNotSubscribed, ch.addr)
	}

	if c := sub.notifier.Cap(); c > 0 && len(value) > c {
		s.logger.WithFields(logrus.Fields{
			"address": ch.addr,
			"len":     len(value),
			"cap":     c,
		}).Warn("Notification truncated to MTU")
		value = value[:c]
	}
	if _, err := sub.notifier.Write(value); err != nil {
		return peripheral.StatusUnlikely, NormalizeError(err)
	}
	return peripheral.StatusSuccess, nil
}

func (s *Stack) dispatch(ev peripheral.Event) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		return
	}
	handler(ev)
}

func (s *Stack) nextRequestID() int {
	return int(s.nextID.Add(1))
}

// linkConnected reports a connect for an HCI link. A handle for the same
// address is replaced; the session treats the repeat as a duplicate connect.
func (s *Stack) linkConnected(addr string, link uint16) {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	h := &connHandle{addr: addr, hci: true}
	s.conns.Set(addr, h)
	s.links.Set(link, h)
	s.logger.WithFields(logrus.Fields{
		"address": addr,
		"link":    fmt.Sprintf("0x%04x", link),
	}).Debug("Link connected")
	s.dispatch(peripheral.ConnectionStateChanged{Handle: h, State: peripheral.LinkConnected})
}

// linkDisconnected reports a disconnect for an HCI link unless its handle was
// already replaced by a newer connection from the same address.
func (s *Stack) linkDisconnected(link uint16) {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	h, ok := s.links.Get(link)
	if !ok {
		s.logger.WithField("link", fmt.Sprintf("0x%04x", link)).Debug("Ignoring disconnect of unknown link")
		return
	}
	s.links.Del(link)
	s.dropLocked(h)
}

// track resolves conn to its handle, reporting a connect the first time a
// ble.Conn is seen without a prior link event.
func (s *Stack) track(conn ble.Conn) *connHandle {
	addr := peripheral.NewIdentity(conn.RemoteAddr().String()).String()

	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	if h, ok := s.conns.Get(addr); ok {
		if h.conn == conn {
			return h
		}
		if h.hci && h.conn == nil {
			h.conn = conn
			return h
		}
	}

	h := &connHandle{conn: conn, addr: addr}
	s.conns.Set(addr, h)
	s.dispatch(peripheral.ConnectionStateChanged{Handle: h, State: peripheral.LinkConnected})

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	groutine.Go(ctx, "conn-watch", s.logger, func(ctx context.Context) {
		s.watch(ctx, h)
	})
	return h
}

// watch reports a disconnect once h's link drops, unless h was already
// replaced by a newer connection from the same address.
func (s *Stack) watch(ctx context.Context, h *connHandle) {
	select {
	case <-h.conn.Disconnected():
	case <-ctx.Done():
		return
	}

	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	s.dropLocked(h)
}

// dropLocked removes h and reports its disconnect. Callers hold trackMu.
func (s *Stack) dropLocked(h *connHandle) {
	if cur, ok := s.conns.Get(h.addr); !ok || cur != h {
		s.logger.WithField("address", h.addr).Debug("Ignoring disconnect of replaced connection")
		return
	}
	s.conns.Del(h.addr)
	if sub, ok := s.notifiers.Get(h.addr); ok && sub.handle == h {
		s.notifiers.Del(h.addr)
	}
	s.dispatch(peripheral.ConnectionStateChanged{Handle: h, State: peripheral.LinkDisconnected})
}

// park registers rsp and returns its request ID together with the release func.
func (s *Stack) park(rsp ble.ResponseWriter, read bool) (int, func()) {
	id := s.nextRequestID()
	s.pending.Set(id, &pendingResponse{rsp: rsp, read: read})
	return id, func() { s.pending.Del(id) }
}

func (s *Stack) serveRead(req ble.Request, rsp ble.ResponseWriter) {
	h := s.track(req.Conn())
	id, release := s.park(rsp, true)
	defer release()

	s.dispatch(peripheral.CharacteristicReadRequest{
		Handle:    h,
		RequestID: id,
		Offset:    req.Offset(),
	})
}

func (s *Stack) serveWrite(req ble.Request, rsp ble.ResponseWriter) {
	h := s.track(req.Conn())
	id, release := s.park(rsp, false)
	defer release()

	s.dispatch(peripheral.CharacteristicWriteRequest{
		Handle:         h,
		RequestID:      id,
		Offset:         req.Offset(),
		Value:          append([]byte(nil), req.Data()...),
		ResponseNeeded: true,
	})
}

// serveNotify runs for as long as the central keeps notifications enabled.
func (s *Stack) serveNotify(req ble.Request, n ble.Notifier) {
	h := s.track(req.Conn())
	sub := &subscription{handle: h, notifier: n}
	s.notifiers.Set(h.addr, sub)

	s.dispatch(peripheral.DescriptorWriteRequest{
		Handle:     h,
		RequestID:  s.nextRequestID(),
		Descriptor: peripheral.CCCDUUID,
		Value:      peripheral.EnableNotificationValue,
	})

	s.mu.Lock()
	stackCtx := s.ctx
	s.mu.Unlock()
	if stackCtx == nil {
		return
	}

	select {
	case <-n.Context().Done():
	case <-h.conn.Disconnected():
	case <-stackCtx.Done():
		return
	}

	if cur, ok := s.notifiers.Get(h.addr); !ok || cur != sub {
		return
	}
	s.notifiers.Del(h.addr)
	s.dispatch(peripheral.DescriptorWriteRequest{
		Handle:     h,
		RequestID:  s.nextRequestID(),
		Descriptor: peripheral.CCCDUUID,
		Value:      peripheral.DisableNotificationValue,
	})
}
