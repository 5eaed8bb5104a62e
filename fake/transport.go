// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the transport contract.

package fake

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/momentics/hioload-wsc/api"
)

// Transport is an in-memory api.Transport. Sent writes are recorded; bytes
// for the receiving side are injected with Deliver.
type Transport struct {
	mu         sync.Mutex
	events     api.TransportEvents
	connected  bool
	closed     bool
	sent       [][]byte
	sentCh     chan []byte
	sendError  error
	connectErr error
	onConnect  func()
	closeError error
	scratch    []byte
}

// NewTransport creates a disconnected fake transport.
func NewTransport() *Transport {
	return &Transport{sentCh: make(chan []byte, 1024)}
}

// SetEvents implements api.Transport.
func (t *Transport) SetEvents(ev api.TransportEvents) {
	t.mu.Lock()
	t.events = ev
	t.mu.Unlock()
}

// Connect implements api.Transport. OnConnected runs on the caller's goroutine.
func (t *Transport) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	hook := t.onConnect
	t.mu.Unlock()
	if hook != nil {
		hook()
	}
	t.mu.Lock()
	if t.connectErr != nil {
		err := t.connectErr
		t.mu.Unlock()
		return err
	}
	if t.closed {
		t.mu.Unlock()
		return api.ErrTransportClosed
	}
	t.connected = true
	ev := t.events
	t.mu.Unlock()

	if ev != nil {
		ev.OnConnected()
	}
	return nil
}

// Send implements api.Transport. The buffers of one call are recorded as
// one contiguous write.
func (t *Transport) Send(buffers [][]byte) error {
	t.mu.Lock()
	if !t.connected || t.closed {
		t.mu.Unlock()
		return api.ErrTransportClosed
	}
	if t.sendError != nil {
		err := t.sendError
		t.mu.Unlock()
		return err
	}
	w := bytes.Join(buffers, nil)
	t.sent = append(t.sent, w)
	t.mu.Unlock()

	select {
	case t.sentCh <- w:
	default:
	}
	return nil
}

// Close implements api.Transport. OnClosed fires only on the first call.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closeError != nil {
		err := t.closeError
		t.mu.Unlock()
		return err
	}
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	ev := t.events
	t.mu.Unlock()

	if ev != nil {
		ev.OnClosed()
	}
	return nil
}

// IsConnected implements api.Transport.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Closed reports whether Close succeeded.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Deliver hands p to OnDataReceived in pieces of the given sizes (the rest
// goes last). Every piece is lent from one scratch array that is overwritten
// after each callback, the way a socket read loop reuses its buffer.
func (t *Transport) Deliver(p []byte, sizes ...int) {
	t.mu.Lock()
	ev := t.events
	if cap(t.scratch) < len(p) {
		t.scratch = make([]byte, len(p))
	}
	scratch := t.scratch[:len(p)]
	t.mu.Unlock()
	if ev == nil {
		return
	}

	pos := 0
	send := func(n int) {
		copy(scratch, p[pos:pos+n])
		ev.OnDataReceived(scratch, 0, n)
		for i := range scratch[:n] {
			scratch[i] = 0xEE
		}
		pos += n
	}
	for _, n := range sizes {
		if n <= 0 || pos+n > len(p) {
			break
		}
		send(n)
	}
	if pos < len(p) {
		send(len(p) - pos)
	}
}

// Fail reports err to the events sink and closes the transport.
func (t *Transport) Fail(err error) {
	t.mu.Lock()
	ev := t.events
	t.mu.Unlock()
	if ev != nil {
		ev.OnError(err)
	}
	_ = t.Close()
}

// Sent returns every recorded write.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// NextSent waits up to timeout for the next write.
func (t *Transport) NextSent(timeout time.Duration) ([]byte, bool) {
	select {
	case w := <-t.sentCh:
		return w, true
	case <-time.After(timeout):
		return nil, false
	}
}

// ClearSent drops recorded writes, including ones not yet taken by NextSent.
func (t *Transport) ClearSent() {
	t.mu.Lock()
	t.sent = t.sent[:0]
	t.mu.Unlock()
	for {
		select {
		case <-t.sentCh:
		default:
			return
		}
	}
}

// SetSendError configures the transport to return an error on Send.
func (t *Transport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendError = err
}

// SetConnectHook runs fn at the start of every Connect, before the dial
// outcome is decided.
func (t *Transport) SetConnectHook(fn func()) {
	t.mu.Lock()
	t.onConnect = fn
	t.mu.Unlock()
}

// SetConnectError configures the transport to fail Connect.
func (t *Transport) SetConnectError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectErr = err
}

// SetCloseError configures the transport to return an error on Close.
func (t *Transport) SetCloseError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeError = err
}
