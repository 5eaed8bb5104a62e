// File: protocol/hybi.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Framed protocol versions: RFC 6455 and draft-hybi-10 share the frame
// layout and differ in the handshake version number, the origin header name
// and the close code for oversized frames.

package protocol

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/momentics/hioload-wsc/api"
	core "github.com/momentics/hioload-wsc/core/protocol"
)

type hybiProcessor struct {
	version      api.Version
	originHeader string
	codes        CloseCodes
}

// NewRFC6455 returns the processor for Sec-WebSocket-Version 13.
func NewRFC6455() Processor {
	return &hybiProcessor{
		version:      api.VersionRFC6455,
		originHeader: core.HeaderOrigin,
		codes:        hybiCloseCodes(core.CloseMessageTooBig),
	}
}

// NewHybi10 returns the processor for Sec-WebSocket-Version 8.
func NewHybi10() Processor {
	return &hybiProcessor{
		version:      api.VersionHybi10,
		originHeader: core.HeaderSecWebSocketOrig,
		codes:        hybiCloseCodes(core.CloseTooLargeHybi10),
	}
}

func hybiCloseCodes(tooLarge int) CloseCodes {
	return CloseCodes{
		NormalClosure:       core.CloseNormalClosure,
		GoingAway:           core.CloseGoingAway,
		ProtocolError:       core.CloseProtocolError,
		NotAcceptableData:   core.CloseUnsupportedData,
		TooLargeFrame:       tooLarge,
		InvalidUTF8:         core.CloseInvalidPayloadData,
		ViolatePolicy:       core.ClosePolicyViolation,
		ExtensionNotMatch:   core.CloseMissingExtension,
		UnexpectedCondition: core.CloseInternalServerErr,
		NoStatusCode:        core.CloseNoStatusRcvd,
	}
}

func (p *hybiProcessor) Version() api.Version   { return p.version }
func (p *hybiProcessor) SupportsBinary() bool   { return true }
func (p *hybiProcessor) SupportsPingPong() bool { return true }
func (p *hybiProcessor) CloseCodes() CloseCodes { return p.codes }

func (p *hybiProcessor) NewHandshakeReader() HandshakeReader { return NewHTTPHandshakeReader() }

func (p *hybiProcessor) NewDataReader() DataReader {
	return NewFrameDataReader(p.codes.NoStatusCode)
}

func (p *hybiProcessor) HandshakeRequest(opts HandshakeOptions) (*HandshakeRequest, error) {
	if opts.URL == nil {
		return nil, fmt.Errorf("%w: handshake needs a target url", api.ErrInvalidArgument)
	}
	key, err := core.NewClientKey()
	if err != nil {
		return nil, err
	}

	hdr := baseHeaders(opts)
	hdr.Set(core.HeaderUpgrade, "websocket")
	hdr.Set(core.HeaderConnection, "Upgrade")
	hdr.Set(core.HeaderSecWebSocketVer, fmt.Sprint(int(p.version)))
	hdr.Set(core.HeaderSecWebSocketKey, key)
	hdr.Set(p.originHeader, originFor(opts))

	var buf bytes.Buffer
	if err := core.WriteHandshakeRequest(&buf, opts.URL.RequestURI(), opts.URL.Host, hdr, nil); err != nil {
		return nil, err
	}
	return &HandshakeRequest{Payload: buf.Bytes(), accept: core.ComputeAcceptKey(key)}, nil
}

func (p *hybiProcessor) VerifyHandshake(req *HandshakeRequest, msg *Message) error {
	resp, err := checkUpgradeResponse(msg)
	if err != nil {
		return err
	}
	if !core.HeaderContainsToken(resp.Header, core.HeaderConnection, "upgrade") {
		return fmt.Errorf("%w: missing Connection: Upgrade", ErrHandshakeRejected)
	}
	if got := resp.Header.Get(core.HeaderSecWebSocketAcc); got != req.accept {
		return fmt.Errorf("%w: got %q", ErrAcceptMismatch, got)
	}
	return nil
}

func (p *hybiProcessor) EncodeText(s string) ([]byte, error) {
	return core.EncodeMaskedFrame(true, core.OpcodeText, []byte(s))
}

func (p *hybiProcessor) EncodeBinary(b []byte) ([]byte, error) {
	return core.EncodeMaskedFrame(true, core.OpcodeBinary, b)
}

// EncodeBinarySegments sends segs as one fragmented binary message, one
// frame per segment.
func (p *hybiProcessor) EncodeBinarySegments(segs [][]byte) ([]byte, error) {
	if len(segs) == 0 {
		return p.EncodeBinary(nil)
	}
	size := 0
	for _, s := range segs {
		size += core.FrameLen(len(s), true)
	}
	out := make([]byte, 0, size)
	for i, s := range segs {
		op := byte(core.OpcodeContinuation)
		if i == 0 {
			op = core.OpcodeBinary
		}
		key, err := core.NewMaskKey()
		if err != nil {
			return nil, err
		}
		out = core.AppendFrame(out, i == len(segs)-1, op, s, &key)
	}
	return out, nil
}

func (p *hybiProcessor) EncodeClose(code int, reason string) ([]byte, error) {
	if code == 0 {
		return core.EncodeMaskedFrame(true, core.OpcodeClose, nil)
	}
	return core.EncodeMaskedFrame(true, core.OpcodeClose, core.EncodeClosePayload(code, reason))
}

func (p *hybiProcessor) EncodePing(payload string) ([]byte, error) {
	return encodeControl(core.OpcodePing, payload)
}

func (p *hybiProcessor) EncodePong(payload string) ([]byte, error) {
	return encodeControl(core.OpcodePong, payload)
}

func encodeControl(op byte, payload string) ([]byte, error) {
	if len(payload) > core.MaxControlPayloadLen {
		return nil, fmt.Errorf("%w: %w", api.ErrInvalidArgument, core.ErrControlTooLong)
	}
	return core.EncodeMaskedFrame(true, op, []byte(payload))
}

// baseHeaders collects the caller-supplied request headers.
func baseHeaders(opts HandshakeOptions) http.Header {
	hdr := opts.Headers.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	if opts.SubProtocol != "" {
		hdr.Set(core.HeaderSecWebSocketProto, opts.SubProtocol)
	}
	if opts.UserAgent != "" {
		hdr.Set(core.HeaderUserAgent, opts.UserAgent)
	}
	if len(opts.Cookies) > 0 {
		parts := make([]string, 0, len(opts.Cookies))
		for _, c := range opts.Cookies {
			parts = append(parts, c.Name+"="+c.Value)
		}
		hdr.Set(core.HeaderCookie, strings.Join(parts, "; "))
	}
	return hdr
}

// originFor returns the configured origin or one derived from the target.
func originFor(opts HandshakeOptions) string {
	if opts.Origin != "" {
		return opts.Origin
	}
	scheme := "http"
	if opts.URL.Scheme == "wss" || opts.URL.Scheme == "https" {
		scheme = "https"
	}
	return scheme + "://" + opts.URL.Host
}

// checkUpgradeResponse parses a handshake message and checks the status line
// and Upgrade header shared by every version.
func checkUpgradeResponse(msg *Message) (*http.Response, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnexpectedMessage)
	}
	switch msg.Kind {
	case KindBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, statusLine(msg.Text))
	case KindHandshake:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Kind)
	}
	resp, err := core.ParseHandshakeResponse(msg.Text)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return nil, fmt.Errorf("%w: %s", ErrHandshakeRejected, statusLine(msg.Text))
	}
	if !core.HeaderContainsToken(resp.Header, core.HeaderUpgrade, "websocket") {
		return nil, fmt.Errorf("%w: missing Upgrade: websocket", ErrHandshakeRejected)
	}
	return resp, nil
}

func statusLine(head string) string {
	line, _, _ := strings.Cut(head, "\r\n")
	return line
}
