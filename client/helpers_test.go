// File: client/helpers_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-wsc/api"
	"github.com/momentics/hioload-wsc/core/buffer"
	core "github.com/momentics/hioload-wsc/core/protocol"
	"github.com/momentics/hioload-wsc/fake"
	"github.com/momentics/hioload-wsc/protocol"
)

const waitFor = 2 * time.Second

type closeEvent struct {
	code   int
	reason string
}

// recorder collects every callback a session raises.
type recorder struct {
	mu       sync.Mutex
	opened   int
	texts    []string
	data     [][]byte
	errs     []error
	closes   []closeEvent
	messages chan string
	errCh    chan error
}

func newRecorder() *recorder {
	return &recorder{messages: make(chan string, 64), errCh: make(chan error, 64)}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnOpened: func(*Session) {
			r.mu.Lock()
			r.opened++
			r.mu.Unlock()
		},
		OnMessage: func(_ *Session, text string) {
			r.mu.Lock()
			r.texts = append(r.texts, text)
			r.mu.Unlock()
			r.messages <- text
		},
		OnData: func(_ *Session, p []byte) {
			r.mu.Lock()
			r.data = append(r.data, p)
			r.mu.Unlock()
		},
		OnError: func(_ *Session, err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			select {
			case r.errCh <- err:
			default:
			}
		},
		OnClosed: func(_ *Session, code int, reason string) {
			r.mu.Lock()
			r.closes = append(r.closes, closeEvent{code, reason})
			r.mu.Unlock()
		},
	}
}

func (r *recorder) closeEvents() []closeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]closeEvent(nil), r.closes...)
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.URL = "ws://example.test/chat?room=1"
	cfg.Version = "rfc6455"
	cfg.AutoPing = false
	return cfg
}

func newTestSession(t *testing.T, cfg Config, opts ...Option) (*Session, *fake.Transport, *recorder) {
	t.Helper()
	tr := fake.NewTransport()
	rec := newRecorder()
	s, err := NewSession(cfg, tr, append([]Option{WithHandlers(rec.handlers())}, opts...)...)
	require.NoError(t, err)
	return s, tr, rec
}

// acceptResponse answers an RFC 6455 opening request.
func acceptResponse(t *testing.T, request []byte) []byte {
	t.Helper()
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(request)))
	require.NoError(t, err)
	key := req.Header.Get(core.HeaderSecWebSocketKey)
	require.NotEmpty(t, key)
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + core.ComputeAcceptKey(key) + "\r\n\r\n")
}

// hixieResponse answers a hybi-00 opening request, challenge included.
func hixieResponse(t *testing.T, request []byte) []byte {
	t.Helper()
	br := bufio.NewReader(bytes.NewReader(request))
	req, err := http.ReadRequest(br)
	require.NoError(t, err)
	var key3 [8]byte
	_, err = io.ReadFull(br, key3[:])
	require.NoError(t, err)
	n1, err := protocol.ParseHixieKey(req.Header.Get(core.HeaderSecWebSocketKey1))
	require.NoError(t, err)
	n2, err := protocol.ParseHixieKey(req.Header.Get(core.HeaderSecWebSocketKey2))
	require.NoError(t, err)

	head := "HTTP/1.1 101 WebSocket Protocol Handshake\r\n" +
		"Upgrade: WebSocket\r\n" +
		"Connection: Upgrade\r\n\r\n"
	return append([]byte(head), protocol.HixieChallenge(n1, n2, key3)...)
}

// openSession opens s and completes the handshake, extra trailing the
// response in the same delivery.
func openSession(t *testing.T, s *Session, tr *fake.Transport, extra []byte, sizes ...int) {
	t.Helper()
	require.NoError(t, s.Open(t.Context()))
	req, ok := tr.NextSent(waitFor)
	require.True(t, ok, "no handshake request sent")
	var resp []byte
	if s.Version() == api.VersionHybi00 {
		resp = hixieResponse(t, req)
	} else {
		resp = acceptResponse(t, req)
	}
	tr.Deliver(append(resp, extra...), sizes...)
	select {
	case <-s.Opened():
	case <-time.After(waitFor):
		t.Fatal("session did not open")
	}
}

func serverFrame(op byte, payload []byte) []byte {
	return core.AppendFrame(nil, true, op, payload, nil)
}

func serverClose(code uint16, reason string) []byte {
	p := binary.BigEndian.AppendUint16(nil, code)
	return serverFrame(core.OpcodeClose, append(p, reason...))
}

type clientFrame struct {
	fin     bool
	opcode  byte
	masked  bool
	payload []byte
}

// parseClientFrames splits a client write into unmasked frames.
func parseClientFrames(t *testing.T, b []byte) []clientFrame {
	t.Helper()
	var out []clientFrame
	for len(b) > 0 {
		require.GreaterOrEqual(t, len(b), 2)
		f := clientFrame{fin: b[0]&core.FinBit != 0, opcode: b[0] & core.OpcodeMsk, masked: b[1]&core.MaskBit != 0}
		n := int(b[1] & core.LengthMsk)
		b = b[2:]
		switch n {
		case core.LengthCode16:
			n = int(binary.BigEndian.Uint16(b))
			b = b[2:]
		case core.LengthCode64:
			n = int(binary.BigEndian.Uint64(b))
			b = b[8:]
		}
		var key [4]byte
		if f.masked {
			copy(key[:], b)
			b = b[4:]
		}
		require.GreaterOrEqual(t, len(b), n)
		f.payload = append([]byte(nil), b[:n]...)
		if f.masked {
			buffer.MaskBytes(key, f.payload)
		}
		b = b[n:]
		out = append(out, f)
	}
	return out
}

func nextFrame(t *testing.T, tr *fake.Transport) clientFrame {
	t.Helper()
	w, ok := tr.NextSent(waitFor)
	require.True(t, ok, "nothing sent")
	frames := parseClientFrames(t, w)
	require.Len(t, frames, 1)
	return frames[0]
}

func waitDone(t *testing.T, s *Session, d time.Duration) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(d):
		t.Fatalf("session still %s", s.State())
	}
}
