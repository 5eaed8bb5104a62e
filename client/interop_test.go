// File: client/interop_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-wsc/api"
	core "github.com/momentics/hioload-wsc/core/protocol"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// gorillaEcho echoes every data message. A text message "ping:<x>" makes
// the server ping with <x> and report the pong as "pong:<x>".
func gorillaEcho(t *testing.T) *httptest.Server {
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade: %v", err)
			return
		}
		defer c.Close()
		c.SetPongHandler(func(data string) error {
			return c.WriteMessage(websocket.TextMessage, []byte("pong:"+data))
		})
		for {
			mt, p, err := c.ReadMessage()
			if err != nil {
				return
			}
			if payload, ok := bytes.CutPrefix(p, []byte("ping:")); ok && mt == websocket.TextMessage {
				if err := c.WriteControl(websocket.PingMessage, payload, time.Now().Add(time.Second)); err != nil {
					return
				}
				continue
			}
			if err := c.WriteMessage(mt, p); err != nil {
				return
			}
		}
	}))
}

func dialSession(t *testing.T, rawURL string, rec *recorder) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = rawURL
	cfg.Version = "rfc6455"
	cfg.AutoPing = false
	cfg.SocketReadBuffer = "256KiB"
	s, err := NewSession(cfg, nil, WithHandlers(rec.handlers()))
	require.NoError(t, err)
	require.NoError(t, s.Open(t.Context()))
	select {
	case <-s.Opened():
	case <-s.Done():
		t.Fatalf("handshake failed: %v", rec.errors())
	case <-time.After(waitFor):
		t.Fatal("handshake timed out")
	}
	return s
}

func TestInterop_GorillaEcho(t *testing.T) {
	srv := gorillaEcho(t)
	defer srv.Close()
	rec := newRecorder()
	s := dialSession(t, wsURL(srv), rec)

	require.NoError(t, s.Send("hello"))
	assert.Equal(t, "hello", <-rec.messages)

	big := strings.Repeat("ü", 40000)
	require.NoError(t, s.Send(big))
	assert.Equal(t, big, <-rec.messages)

	require.NoError(t, s.Send("ping:abc"))
	assert.Equal(t, "pong:abc", <-rec.messages)

	require.NoError(t, s.SendBinary([]byte{1, 2, 3}))
	require.NoError(t, s.SendSegments([][]byte{{4}, {5, 6}, {7}}))
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.data) == 2
	}, waitFor, 5*time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, [][]byte{{1, 2, 3}, {4, 5, 6, 7}}, rec.data)
	rec.mu.Unlock()

	require.NoError(t, s.Close(core.CloseNormalClosure, "bye"))
	waitDone(t, s, waitFor)
	events := rec.closeEvents()
	require.Len(t, events, 1)
	assert.Equal(t, core.CloseNormalClosure, events[0].code)
	assert.Empty(t, rec.errors())
}

func TestInterop_CoderServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := cws.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), waitFor)
		defer cancel()
		if err := c.Write(ctx, cws.MessageText, []byte("welcome")); err != nil {
			return
		}
		_ = c.Close(cws.StatusGoingAway, "maintenance")
	}))
	defer srv.Close()

	rec := newRecorder()
	s := dialSession(t, wsURL(srv), rec)
	assert.Equal(t, "welcome", <-rec.messages)
	waitDone(t, s, waitFor)
	assert.Equal(t, []closeEvent{{int(cws.StatusGoingAway), "maintenance"}}, rec.closeEvents())
	assert.Empty(t, rec.errors())
}

// connectProxy tunnels CONNECT requests and counts them.
func connectProxy(t *testing.T, tunnels *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodConnect {
			http.Error(w, "connect only", http.StatusMethodNotAllowed)
			return
		}
		upstream, err := net.Dial("tcp", r.Host)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		conn, _, err := http.NewResponseController(w).Hijack()
		if err != nil {
			upstream.Close()
			return
		}
		tunnels.Add(1)
		_, _ = conn.Write([]byte("HTTP/1.1 200 Connection established\r\n\r\n"))
		go func() {
			_, _ = io.Copy(upstream, conn)
			upstream.Close()
		}()
		_, _ = io.Copy(conn, upstream)
		conn.Close()
	}))
}

func TestInterop_HTTPConnectProxy(t *testing.T) {
	srv := gorillaEcho(t)
	defer srv.Close()
	var tunnels atomic.Int32
	px := connectProxy(t, &tunnels)
	defer px.Close()

	cfg := DefaultConfig()
	cfg.URL = wsURL(srv)
	cfg.Version = "rfc6455"
	cfg.Proxy = px.URL
	rec := newRecorder()
	s, err := NewSession(cfg, nil, WithHandlers(rec.handlers()))
	require.NoError(t, err)
	require.NoError(t, s.Open(t.Context()))

	select {
	case <-s.Opened():
	case <-time.After(waitFor):
		t.Fatalf("no handshake through proxy: %v", rec.errors())
	}
	require.NoError(t, s.Send("via proxy"))
	assert.Equal(t, "via proxy", <-rec.messages)
	assert.Equal(t, int32(1), tunnels.Load())

	require.NoError(t, s.CloseWithReason(""))
	waitDone(t, s, waitFor)
}

func TestNetTransport_ConnectRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := DefaultConfig()
	cfg.URL = "ws://" + addr + "/"
	rec := newRecorder()
	s, err := NewSession(cfg, nil, WithHandlers(rec.handlers()))
	require.NoError(t, err)

	err = s.Open(t.Context())
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrCodeTransport, apiErr.Code)
	assert.Equal(t, api.StateClosed, s.State())
}

func TestNetTransport_SendBeforeConnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "ws://127.0.0.1:1/"
	u, err := cfg.ParsedURL()
	require.NoError(t, err)
	tr := NewNetTransport(cfg, u, nil)
	assert.ErrorIs(t, tr.Send([][]byte{{1}}), api.ErrTransportClosed)
	assert.False(t, tr.IsConnected())
	assert.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Connect(t.Context()), api.ErrTransportClosed)
}

func TestHostPort(t *testing.T) {
	for raw, want := range map[string]string{
		"ws://a.test/x":      "a.test:80",
		"wss://a.test/x":     "a.test:443",
		"ws://a.test:8080/":  "a.test:8080",
		"wss://[::1]/socket": "[::1]:443",
	} {
		cfg := Config{URL: raw}
		u, err := cfg.ParsedURL()
		require.NoError(t, err)
		assert.Equal(t, want, hostPort(u), raw)
	}
}
