// File: client/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session drives one client connection through
// None -> Connecting -> Open -> Closing -> Closed.
// Transitions are compare-and-swap on an atomic state word, so timers,
// the receive goroutine and callers may race without double transitions.

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-wsc/api"
	"github.com/momentics/hioload-wsc/control"
	core "github.com/momentics/hioload-wsc/core/protocol"
	"github.com/momentics/hioload-wsc/internal/logging"
	"github.com/momentics/hioload-wsc/internal/session"
	"github.com/momentics/hioload-wsc/protocol"
)

// Registry keys updated by every session.
const (
	MetricBytesReceived    = "bytes_received"
	MetricBytesSent        = "bytes_sent"
	MetricMessagesReceived = "messages_received"
	MetricFramesSent       = "frames_sent"
	MetricSessionsOpen     = "sessions_open"
)

// Handlers are the application callbacks. Each may be nil. Message
// callbacks run on the transport's receive goroutine.
type Handlers struct {
	OnOpened  func(s *Session)
	OnMessage func(s *Session, text string)
	OnData    func(s *Session, data []byte)
	OnError   func(s *Session, err error)
	OnClosed  func(s *Session, code int, reason string)
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithHandlers installs the application callbacks.
func WithHandlers(h Handlers) Option {
	return func(s *Session) { s.handlers = h }
}

// WithMetrics publishes counters into reg.
func WithMetrics(reg *control.MetricsRegistry) Option {
	return func(s *Session) { s.metrics = reg }
}

// WithProbes registers a debug probe named after the session.
func WithProbes(dp *control.DebugProbes) Option {
	return func(s *Session) { s.probes = dp }
}

// WithFactory replaces the processor set used for version selection.
func WithFactory(f *protocol.ProcessorFactory) Option {
	return func(s *Session) { s.factory = f }
}

// WithDispatcher replaces the message commands.
func WithDispatcher(d *Dispatcher) Option {
	return func(s *Session) { s.dispatcher = d }
}

// Stats is a snapshot of a session's counters.
type Stats struct {
	ID               string
	State            api.State
	Version          api.Version
	BytesReceived    int64
	BytesSent        int64
	MessagesReceived int64
	FramesSent       int64
	LastActive       time.Time
}

// Session is a client WebSocket connection.
type Session struct {
	id         string
	cfg        Config
	url        *url.URL
	factory    *protocol.ProcessorFactory
	proc       protocol.Processor
	transport  api.Transport
	dispatcher *Dispatcher
	handlers   Handlers
	log        *slog.Logger
	metrics    *control.MetricsRegistry
	probes     *control.DebugProbes
	items      *session.Items

	state      atomic.Int32
	handshaked atomic.Bool
	negotiated atomic.Int32
	lastActive atomic.Int64

	bytesIn   atomic.Int64
	bytesOut  atomic.Int64
	msgsIn    atomic.Int64
	framesOut atomic.Int64

	// owned by the receive goroutine
	request    *protocol.HandshakeRequest
	hsReader   protocol.HandshakeReader
	dataReader protocol.DataReader

	mu          sync.Mutex
	pingStop    chan struct{}
	closeTimer  *time.Timer
	lastPing    string
	lastPong    string
	closeCode   int
	closeReason string
	wasOpen     bool

	opened     chan struct{}
	openedOnce sync.Once
	done       chan struct{}
	doneOnce   sync.Once
}

// NewSession validates cfg and binds a session to tr. A nil tr selects a
// NetTransport built from cfg.
func NewSession(cfg Config, tr api.Transport, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := cfg.ParsedURL()
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		url:        u,
		factory:    protocol.DefaultFactory(),
		dispatcher: DefaultDispatcher(),
		log:        logging.Nop(),
		items:      session.NewItems(),
		opened:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	v, _ := api.ParseVersion(cfg.Version)
	p, ok := s.factory.ByVersion(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnsupportedVersion, v)
	}
	s.proc = p
	s.negotiated.Store(int32(api.VersionNone))
	s.log = s.log.With("session", s.id, "version", p.Version().String())

	if tr == nil {
		tr = NewNetTransport(cfg, u, s.log)
	}
	s.transport = tr
	tr.SetEvents(sessionEvents{s})

	if s.probes != nil {
		s.probes.RegisterProbe("session."+s.id, func() any { return s.Stats() })
	}
	return s, nil
}

// ID returns the session identifier used in logs and probes.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() api.State { return api.State(s.state.Load()) }

// Handshaked reports whether the opening handshake succeeded.
func (s *Session) Handshaked() bool { return s.handshaked.Load() }

// Version returns the protocol version in use.
func (s *Session) Version() api.Version { return s.proc.Version() }

// NegotiatedVersion returns the version a rejecting server asked for, or
// api.VersionNone. The caller reopens with it.
func (s *Session) NegotiatedVersion() api.Version { return api.Version(s.negotiated.Load()) }

// SupportsBinary reports whether binary frames can be sent.
func (s *Session) SupportsBinary() bool { return s.proc.SupportsBinary() }

// Items returns the per-session user item store.
func (s *Session) Items() *session.Items { return s.items }

// Opened is closed once the handshake succeeds.
func (s *Session) Opened() <-chan struct{} { return s.opened }

// Done is closed once the session reaches Closed and OnClosed has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// LastActiveTime returns when data last arrived.
func (s *Session) LastActiveTime() time.Time {
	n := s.lastActive.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		ID:               s.id,
		State:            s.State(),
		Version:          s.proc.Version(),
		BytesReceived:    s.bytesIn.Load(),
		BytesSent:        s.bytesOut.Load(),
		MessagesReceived: s.msgsIn.Load(),
		FramesSent:       s.framesOut.Load(),
		LastActive:       s.LastActiveTime(),
	}
}

// Open connects the transport. The handshake continues on the transport's
// callbacks; wait on Opened or Done for the outcome.
func (s *Session) Open(ctx context.Context) error {
	if !s.transition(api.StateNone, api.StateConnecting) {
		return api.ErrAlreadyStarted
	}
	if err := s.transport.Connect(ctx); err != nil {
		werr := api.WrapError(api.ErrCodeTransport, "connect", err).WithContext("url", s.url.Redacted())
		// A Close that raced the dial already ended the session.
		if s.transition(api.StateConnecting, api.StateClosing) {
			s.notifyError(werr)
		}
		s.finalize()
		return werr
	}
	return nil
}

// Close starts the closing handshake with code and reason. From None the
// session closes at once; while connecting the transport is dropped.
func (s *Session) Close(code int, reason string) error {
	s.mu.Lock()
	s.closeCode, s.closeReason = code, reason
	s.mu.Unlock()

	if s.transition(api.StateNone, api.StateClosed) {
		s.finish(api.StateNone)
		return nil
	}
	if s.transition(api.StateConnecting, api.StateClosing) {
		if s.transport.IsConnected() {
			_ = s.transport.Close()
		}
		s.finalize()
		return nil
	}
	if !s.transition(api.StateOpen, api.StateClosing) {
		return nil
	}

	s.stopHeartbeat()
	s.armCloseWatchdog()
	frame, err := s.proc.EncodeClose(code, reason)
	if err == nil {
		err = s.send(frame)
	}
	if err != nil {
		s.notifyError(err)
	}
	return err
}

// CloseWithReason closes with the normal closure code.
func (s *Session) CloseWithReason(reason string) error {
	return s.Close(s.proc.CloseCodes().NormalClosure, reason)
}

// Send sends a text message.
func (s *Session) Send(text string) error {
	return s.sendEncoded(func() ([]byte, error) { return s.proc.EncodeText(text) })
}

// SendBinary sends a binary message.
func (s *Session) SendBinary(p []byte) error {
	return s.sendEncoded(func() ([]byte, error) { return s.proc.EncodeBinary(p) })
}

// SendSegments sends segs as one fragmented binary message.
func (s *Session) SendSegments(segs [][]byte) error {
	return s.sendEncoded(func() ([]byte, error) { return s.proc.EncodeBinarySegments(segs) })
}

// Ping sends a ping with payload.
func (s *Session) Ping(payload string) error {
	return s.sendEncoded(func() ([]byte, error) { return s.proc.EncodePing(payload) })
}

func (s *Session) sendEncoded(encode func() ([]byte, error)) error {
	if s.State() != api.StateOpen {
		s.notifyError(api.ErrNotOpen)
		return api.ErrNotOpen
	}
	frame, err := encode()
	if err != nil {
		return err
	}
	return s.send(frame)
}

func (s *Session) send(frame []byte) error {
	if err := s.transport.Send([][]byte{frame}); err != nil {
		return api.WrapError(api.ErrCodeTransport, "send", err)
	}
	s.framesOut.Add(1)
	s.bytesOut.Add(int64(len(frame)))
	if s.metrics != nil {
		s.metrics.Add(MetricFramesSent, 1)
		s.metrics.Add(MetricBytesSent, int64(len(frame)))
	}
	return nil
}

func (s *Session) transition(from, to api.State) bool {
	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	s.log.Debug("state changed", "from", from.String(), "to", to.String())
	return true
}

// forceClose drops the transport and drives the session to Closed.
func (s *Session) forceClose() {
	if err := s.transport.Close(); err != nil {
		s.log.Debug("transport close", "err", err)
	}
	s.finalize()
}

// finalize moves to Closed. Only the caller that performs the move runs
// the teardown, so the closed notification fires once.
func (s *Session) finalize() {
	prev := api.State(s.state.Swap(int32(api.StateClosed)))
	if prev == api.StateClosed {
		return
	}
	s.log.Debug("state changed", "from", prev.String(), "to", "closed")
	s.finish(prev)
}

func (s *Session) finish(prev api.State) {
	s.stopHeartbeat()

	s.mu.Lock()
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
	code, reason, wasOpen := s.closeCode, s.closeReason, s.wasOpen
	s.mu.Unlock()

	if code == 0 && s.proc.CloseCodes().NormalClosure != 0 {
		code = core.CloseAbnormalClosure
	}
	if wasOpen && s.metrics != nil {
		s.metrics.Add(MetricSessionsOpen, -1)
	}
	if s.probes != nil {
		s.probes.UnregisterProbe("session." + s.id)
	}

	switch prev {
	case api.StateConnecting, api.StateOpen, api.StateClosing:
		s.log.Info("session closed", "code", code, "reason", reason)
		if h := s.handlers.OnClosed; h != nil {
			h(s, code, reason)
		}
	}
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) notifyError(err error) {
	switch {
	case errors.Is(err, api.ErrNotOpen):
		s.log.Debug("send rejected", "err", err)
	case isTransportError(err):
		s.log.Error("transport error", "err", err)
	default:
		s.log.Warn("session error", "err", err)
	}
	if h := s.handlers.OnError; h != nil {
		h(s, err)
	}
}

func isTransportError(err error) bool {
	var e *api.Error
	return errors.As(err, &e) && e.Code == api.ErrCodeTransport
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// startHeartbeat arms the liveness timer when the version has ping/pong.
func (s *Session) startHeartbeat() {
	if !s.cfg.AutoPing || !s.proc.SupportsPingPong() {
		return
	}
	stop := make(chan struct{})
	s.mu.Lock()
	s.pingStop = stop
	s.mu.Unlock()
	go s.heartbeatLoop(stop, s.cfg.PingInterval)
}

func (s *Session) stopHeartbeat() {
	s.mu.Lock()
	if s.pingStop != nil {
		close(s.pingStop)
		s.pingStop = nil
	}
	s.mu.Unlock()
}

func (s *Session) heartbeatLoop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.heartbeat()
		case <-stop:
			return
		}
	}
}

// heartbeat nudges a peer that did not echo the last ping with an
// unsolicited pong, then pings with the current time. Expired items are
// swept on the same tick.
func (s *Session) heartbeat() {
	if s.State() != api.StateOpen {
		return
	}
	s.items.Sweep()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	s.mu.Lock()
	stale := s.lastPing != "" && s.lastPing != s.lastPong
	s.lastPing = now
	s.mu.Unlock()

	if stale {
		s.log.Debug("last ping unanswered")
		if frame, err := s.proc.EncodePong(""); err == nil {
			_ = s.send(frame)
		}
	}
	frame, err := s.proc.EncodePing(now)
	if err == nil {
		err = s.send(frame)
	}
	if err != nil {
		s.log.Debug("heartbeat", "err", err)
	}
}

func (s *Session) armCloseWatchdog() {
	t := time.AfterFunc(s.cfg.CloseTimeout, func() {
		if s.State() == api.StateClosed {
			return
		}
		s.log.Debug("close handshake timed out")
		s.forceClose()
	})
	s.mu.Lock()
	s.closeTimer = t
	s.mu.Unlock()
}

// receive feeds a lent byte range through the active reader until it is
// consumed or the session ends.
func (s *Session) receive(data []byte, offset, length int) {
	s.bytesIn.Add(int64(length))
	if s.metrics != nil {
		s.metrics.Add(MetricBytesReceived, int64(length))
	}

	for length > 0 {
		st := s.State()
		if st == api.StateClosed {
			return
		}

		var (
			msg  *protocol.Message
			left int
			err  error
		)
		if s.handshaked.Load() {
			msg, left, err = s.dataReader.Feed(data, offset, length)
		} else {
			if s.hsReader == nil {
				return
			}
			msg, left, err = s.hsReader.Feed(data, offset, length)
		}
		if err != nil {
			code := api.ErrCodeProtocol
			if !s.handshaked.Load() {
				code = api.ErrCodeHandshake
			}
			s.notifyError(api.WrapError(code, "decode", err))
			s.forceClose()
			return
		}
		consumed := length - left
		offset += consumed
		length = left
		if msg == nil {
			// A non-final fragment completes a frame without a message;
			// the bytes after it still belong to the stream.
			if consumed == 0 {
				return
			}
			continue
		}
		s.msgsIn.Add(1)
		if s.metrics != nil {
			s.metrics.Add(MetricMessagesReceived, 1)
		}
		s.dispatcher.Dispatch(s, msg)
	}
}

func (s *Session) onConnected() {
	if s.State() != api.StateConnecting {
		_ = s.transport.Close()
		return
	}
	s.hsReader = s.proc.NewHandshakeReader()
	req, err := s.proc.HandshakeRequest(protocol.HandshakeOptions{
		URL:         s.url,
		Origin:      s.cfg.Origin,
		SubProtocol: s.cfg.SubProtocol,
		UserAgent:   s.cfg.UserAgent,
		Headers:     s.cfg.HTTPHeader(),
		Cookies:     s.cfg.HTTPCookies(),
	})
	if err == nil {
		s.request = req
		err = s.send(req.Payload)
	}
	if err != nil {
		s.notifyError(api.WrapError(api.ErrCodeHandshake, "send handshake", err))
		s.forceClose()
	}
}

func (s *Session) onHandshake(msg *protocol.Message) {
	if err := s.proc.VerifyHandshake(s.request, msg); err != nil {
		s.notifyError(api.WrapError(api.ErrCodeHandshake, "verify handshake", err))
		s.forceClose()
		return
	}
	s.hsReader = nil
	s.dataReader = s.proc.NewDataReader()
	if r, ok := s.dataReader.(interface{ SetRetainLimit(int64) }); ok {
		r.SetRetainLimit(s.cfg.RetainLimit())
	}
	s.handshaked.Store(true)
	s.touch()

	if !s.transition(api.StateConnecting, api.StateOpen) {
		return
	}
	s.mu.Lock()
	s.wasOpen = true
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.Add(MetricSessionsOpen, 1)
	}
	s.log.Info("session opened", "url", s.url.Redacted())
	s.startHeartbeat()
	s.openedOnce.Do(func() { close(s.opened) })
	if h := s.handlers.OnOpened; h != nil {
		h(s)
	}
}

func (s *Session) onBadRequest(msg *protocol.Message) {
	versions := protocol.ParseSupportedVersions(msg.Text)
	err := api.WrapError(api.ErrCodeHandshake, "handshake", protocol.ErrBadRequest).
		WithContext("supported_versions", versions)
	if v, _ := api.ParseVersion(s.cfg.Version); v == api.VersionNone {
		if p, ok := s.factory.Preferred(versions); ok && p.Version() != s.proc.Version() {
			s.negotiated.Store(int32(p.Version()))
			s.log.Info("server prefers another version", "negotiated", p.Version().String())
			err.WithContext("negotiated", p.Version().String())
		}
	}
	s.notifyError(err)
	s.forceClose()
}

func (s *Session) onText(msg *protocol.Message) {
	s.touch()
	s.logTruncated(msg)
	if h := s.handlers.OnMessage; h != nil {
		h(s, msg.Text)
	}
}

func (s *Session) onBinary(msg *protocol.Message) {
	s.touch()
	s.logTruncated(msg)
	if h := s.handlers.OnData; h != nil {
		h(s, msg.Data)
	}
}

func (s *Session) logTruncated(msg *protocol.Message) {
	if msg.Truncated {
		s.log.Warn("oversized payload dropped", "kind", string(msg.Kind))
	}
}

func (s *Session) onPing(msg *protocol.Message) {
	s.touch()
	frame, err := s.proc.EncodePong(msg.Text)
	if err == nil {
		err = s.send(frame)
	}
	if err != nil {
		s.log.Debug("pong", "err", err)
	}
}

func (s *Session) onPong(msg *protocol.Message) {
	s.touch()
	s.mu.Lock()
	s.lastPong = msg.Text
	s.mu.Unlock()
}

// onClose answers a peer close while open and ends the session.
func (s *Session) onClose(msg *protocol.Message) {
	s.touch()
	s.mu.Lock()
	s.closeCode, s.closeReason = msg.CloseCode, msg.CloseReason()
	s.mu.Unlock()

	if s.transition(api.StateOpen, api.StateClosing) {
		s.stopHeartbeat()
		code := msg.CloseCode
		if code == s.proc.CloseCodes().NoStatusCode {
			code = 0
		}
		frame, err := s.proc.EncodeClose(code, msg.CloseReason())
		if err == nil {
			err = s.send(frame)
		}
		if err != nil {
			s.log.Debug("close echo", "err", err)
		}
	}
	s.forceClose()
}

// sessionEvents keeps the transport callbacks off the Session API.
type sessionEvents struct{ s *Session }

func (e sessionEvents) OnConnected() { e.s.onConnected() }

func (e sessionEvents) OnClosed() { e.s.finalize() }

func (e sessionEvents) OnError(err error) {
	if e.s.State() == api.StateClosed {
		return
	}
	e.s.notifyError(api.WrapError(api.ErrCodeTransport, "transport", err))
	e.s.forceClose()
}

func (e sessionEvents) OnDataReceived(data []byte, offset, length int) {
	e.s.receive(data, offset, length)
}
