// File: client/transport_client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NetTransport implements api.Transport over net.Conn: ws:// over TCP,
// wss:// over TLS, optionally through an HTTP CONNECT or SOCKS5 proxy.
// One goroutine reads into a pooled buffer that is reused for every read.

package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"golang.org/x/net/proxy"

	"github.com/momentics/hioload-wsc/api"
	"github.com/momentics/hioload-wsc/pool"
)

// NetTransport is a socket-backed api.Transport.
type NetTransport struct {
	cfg  Config
	url  *url.URL
	log  *slog.Logger
	bufs *pool.BytePool

	mu     sync.Mutex
	conn   net.Conn
	events api.TransportEvents

	wmu       sync.Mutex
	connected atomic.Bool
	closed    atomic.Bool
}

// NewNetTransport returns a transport for u configured by cfg.
func NewNetTransport(cfg Config, u *url.URL, log *slog.Logger) *NetTransport {
	return &NetTransport{
		cfg:  cfg,
		url:  u,
		log:  log,
		bufs: pool.ForSize(cfg.ReceiveBufferSize),
	}
}

// SetEvents implements api.Transport.
func (t *NetTransport) SetEvents(ev api.TransportEvents) {
	t.mu.Lock()
	t.events = ev
	t.mu.Unlock()
}

// IsConnected implements api.Transport.
func (t *NetTransport) IsConnected() bool { return t.connected.Load() }

// Connect dials the endpoint, completes TLS when needed, fires OnConnected
// and starts the read loop.
func (t *NetTransport) Connect(ctx context.Context) error {
	if t.closed.Load() {
		return api.ErrTransportClosed
	}
	if t.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ConnectTimeout)
		defer cancel()
	}

	addr := hostPort(t.url)
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(t.cfg.NoDelay)
		applySocketBuffers(tcp, t.cfg)
	}

	if t.url.Scheme == "wss" {
		tlsCfg, err := t.cfg.TLSClientConfig(t.url.Hostname())
		if err != nil {
			conn.Close()
			return err
		}
		tc := tls.Client(conn, tlsCfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("tls handshake %s: %w", addr, err)
		}
		conn = tc
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		conn.Close()
		return api.ErrTransportClosed
	}
	t.conn = conn
	ev := t.events
	t.mu.Unlock()
	t.connected.Store(true)
	t.log.Debug("transport connected", "remote", conn.RemoteAddr().String())

	if ev != nil {
		ev.OnConnected()
	}
	go t.readLoop(conn, ev)
	return nil
}

func (t *NetTransport) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := &net.Dialer{Control: socketControl(t.cfg)}
	if t.cfg.Proxy == "" {
		return d.DialContext(ctx, "tcp", addr)
	}
	pu, err := url.Parse(t.cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("%w: proxy: %v", api.ErrInvalidArgument, err)
	}
	switch pu.Scheme {
	case "socks5":
		var auth *proxy.Auth
		if pu.User != nil {
			pass, _ := pu.User.Password()
			auth = &proxy.Auth{User: pu.User.Username(), Password: pass}
		}
		sd, err := proxy.SOCKS5("tcp", pu.Host, auth, d)
		if err != nil {
			return nil, err
		}
		if cd, ok := sd.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, "tcp", addr)
		}
		return sd.Dial("tcp", addr)
	case "http":
		conn, err := d.DialContext(ctx, "tcp", pu.Host)
		if err != nil {
			return nil, err
		}
		if err := httpConnect(ctx, conn, pu, addr); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}
	return nil, fmt.Errorf("%w: proxy scheme %q", api.ErrInvalidArgument, pu.Scheme)
}

// httpConnect opens a tunnel to addr through an HTTP proxy.
func httpConnect(ctx context.Context, conn net.Conn, pu *url.URL, addr string) error {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if pu.User != nil {
		pass, _ := pu.User.Password()
		r := &http.Request{Header: make(http.Header)}
		r.SetBasicAuth(pu.User.Username(), pass)
		req.Header.Set("Proxy-Authorization", r.Header.Get("Authorization"))
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
		defer conn.SetDeadline(noDeadline)
	}
	if err := req.Write(conn); err != nil {
		return fmt.Errorf("proxy connect: %w", err)
	}
	// The tunnel stays silent until the client speaks, so the reader holds
	// nothing past the response head. The body is left unread: for a
	// successful CONNECT it is the tunnel itself.
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return fmt.Errorf("proxy connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy connect: %s", resp.Status)
	}
	return nil
}

func (t *NetTransport) readLoop(conn net.Conn, ev api.TransportEvents) {
	bp := t.bufs.GetBuffer()
	defer t.bufs.PutBuffer(bp)
	buf := *bp

	for {
		n, err := conn.Read(buf)
		if n > 0 && ev != nil {
			ev.OnDataReceived(buf, 0, n)
		}
		if err == nil {
			continue
		}
		if !t.closed.Load() && !errors.Is(err, io.EOF) && ev != nil {
			ev.OnError(err)
		}
		_ = t.Close()
		return
	}
}

// Send writes buffers as one vectored write. Concurrent calls are serialized.
func (t *NetTransport) Send(buffers [][]byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil || t.closed.Load() {
		return api.ErrTransportClosed
	}

	bufs := net.Buffers(buffers)
	t.wmu.Lock()
	_, err := bufs.WriteTo(conn)
	t.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close shuts the connection. OnClosed fires on the first call after a
// successful Connect.
func (t *NetTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.mu.Lock()
	conn := t.conn
	ev := t.events
	t.mu.Unlock()
	t.connected.Store(false)

	var err error
	if conn != nil {
		err = conn.Close()
		t.log.Debug("transport closed")
		if ev != nil {
			ev.OnClosed()
		}
	}
	return err
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	port := "80"
	if u.Scheme == "wss" {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
