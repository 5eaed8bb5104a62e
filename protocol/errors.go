// File: protocol/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "errors"

var (
	ErrBadRequest         = errors.New("handshake: server answered 400 bad request")
	ErrHandshakeRejected  = errors.New("handshake: server rejected the upgrade")
	ErrHandshakeTooLarge  = errors.New("handshake: response header block too large")
	ErrChallengeMismatch  = errors.New("handshake: challenge response does not match")
	ErrAcceptMismatch     = errors.New("handshake: Sec-WebSocket-Accept does not match")
	ErrUnexpectedMessage  = errors.New("handshake: unexpected message kind")
	ErrHybi00Framing      = errors.New("hybi00: malformed frame")
	ErrUnsupportedVersion = errors.New("protocol: unsupported version")
)
