//go:build test

package goble

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/go-ble/ble"
)

// The fakes embed the go-ble interfaces so only the methods the stack uses
// need implementing; anything else panics on the nil embedded value.

type fakeDevice struct {
	ble.Device

	mu        sync.Mutex
	services  []*ble.Service
	addErr    error
	advertise func(ctx context.Context) error
	advName   string
	advUUIDs  []ble.UUID
	stopped   bool
	removed   bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		advertise: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
}

func (d *fakeDevice) AddService(svc *ble.Service) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.addErr != nil {
		return d.addErr
	}
	d.services = append(d.services, svc)
	return nil
}

func (d *fakeDevice) RemoveAllServices() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services = nil
	d.removed = true
	return nil
}

func (d *fakeDevice) AdvertiseNameAndServices(ctx context.Context, name string, uuids ...ble.UUID) error {
	d.mu.Lock()
	d.advName, d.advUUIDs = name, uuids
	advertise := d.advertise
	d.mu.Unlock()
	return advertise(ctx)
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

// characteristic returns the single characteristic registered on the device.
func (d *fakeDevice) characteristic() *ble.Characteristic {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.services) == 0 || len(d.services[0].Characteristics) == 0 {
		return nil
	}
	return d.services[0].Characteristics[0]
}

type fakeConn struct {
	ble.Conn

	addr ble.Addr
	done chan struct{}
	once sync.Once
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: ble.NewAddr(addr), done: make(chan struct{})}
}

func (c *fakeConn) RemoteAddr() ble.Addr { return c.addr }

func (c *fakeConn) Disconnected() <-chan struct{} { return c.done }

func (c *fakeConn) drop() {
	c.once.Do(func() { close(c.done) })
}

type fakeRequest struct {
	ble.Request

	conn   ble.Conn
	data   []byte
	offset int
}

func (r *fakeRequest) Conn() ble.Conn { return r.conn }

func (r *fakeRequest) Data() []byte { return r.data }

func (r *fakeRequest) Offset() int { return r.offset }

type fakeResponse struct {
	ble.ResponseWriter

	status ble.ATTError
	buf    bytes.Buffer
	cap    int
}

func (w *fakeResponse) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *fakeResponse) Status() ble.ATTError { return w.status }

func (w *fakeResponse) SetStatus(status ble.ATTError) { w.status = status }

func (w *fakeResponse) Len() int { return w.buf.Len() }

func (w *fakeResponse) Cap() int { return w.cap }

type fakeNotifier struct {
	ble.Notifier

	ctx    context.Context
	cancel context.CancelFunc
	cap    int

	mu     sync.Mutex
	writes [][]byte
	err    error
}

func newFakeNotifier(capacity int) *fakeNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeNotifier{ctx: ctx, cancel: cancel, cap: capacity}
}

func (n *fakeNotifier) Context() context.Context { return n.ctx }

func (n *fakeNotifier) Cap() int { return n.cap }

func (n *fakeNotifier) Close() error {
	n.cancel()
	return nil
}

func (n *fakeNotifier) Write(b []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return 0, n.err
	}
	n.writes = append(n.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (n *fakeNotifier) failWith(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = errors.New(msg)
}

func (n *fakeNotifier) written() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]byte(nil), n.writes...)
}
