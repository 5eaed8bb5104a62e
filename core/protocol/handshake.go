// File: core/protocol/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client-side opening handshake primitives shared by every protocol version:
// request serialization, response parsing and key/accept computation.

package protocol

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Constants used for handshake processing.
const (
	WebSocketGUID           = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	HeaderConnection        = "Connection"
	HeaderUpgrade           = "Upgrade"
	HeaderHost              = "Host"
	HeaderOrigin            = "Origin"
	HeaderCookie            = "Cookie"
	HeaderUserAgent         = "User-Agent"
	HeaderSecWebSocketKey   = "Sec-WebSocket-Key"
	HeaderSecWebSocketKey1  = "Sec-WebSocket-Key1"
	HeaderSecWebSocketKey2  = "Sec-WebSocket-Key2"
	HeaderSecWebSocketVer   = "Sec-WebSocket-Version"
	HeaderSecWebSocketOrig  = "Sec-WebSocket-Origin"
	HeaderSecWebSocketProto = "Sec-WebSocket-Protocol"
	HeaderSecWebSocketAcc   = "Sec-WebSocket-Accept"
	MaxHandshakeHeadersSize = 64 << 10
)

// NewClientKey returns a random base64-encoded 16-byte Sec-WebSocket-Key.
func NewClientKey() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("handshake: client key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// ComputeAcceptKey derives the Sec-WebSocket-Accept value the server must
// return for key.
func ComputeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// WriteHandshakeRequest serializes a GET upgrade request line, the Host
// header, hdr and an optional body into w.
func WriteHandshakeRequest(w io.Writer, path, host string, hdr http.Header, body []byte) error {
	if path == "" {
		path = "/"
	}
	if _, err := fmt.Fprintf(w, "GET %s HTTP/1.1\r\n%s: %s\r\n", path, HeaderHost, host); err != nil {
		return fmt.Errorf("handshake write request: %w", err)
	}
	if err := hdr.Write(w); err != nil {
		return fmt.Errorf("handshake write request: %w", err)
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return fmt.Errorf("handshake write request: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("handshake write request: %w", err)
		}
	}
	return nil
}

// ParseHandshakeResponse parses a response header block without its
// terminating blank line.
func ParseHandshakeResponse(head string) (*http.Response, error) {
	br := bufio.NewReader(strings.NewReader(head + "\r\n\r\n"))
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		return nil, fmt.Errorf("handshake read response: %w", err)
	}
	return resp, nil
}

// HeaderContainsToken checks if headerName contains the given token (case-insensitive).
func HeaderContainsToken(h http.Header, headerName, token string) bool {
	vals := h[http.CanonicalHeaderKey(headerName)]
	for _, v := range vals {
		for part := range strings.SplitSeq(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
