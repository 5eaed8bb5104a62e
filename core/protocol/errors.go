// File: core/protocol/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "errors"

// Frame-level protocol violations. Each one is fatal for the connection.
var (
	ErrInvalidLength          = errors.New("frame: 64-bit payload length has the most significant bit set")
	ErrControlFragmented      = errors.New("frame: control frame must not be fragmented")
	ErrControlTooLong         = errors.New("frame: control frame payload exceeds 125 bytes")
	ErrReservedOpcode         = errors.New("frame: reserved opcode")
	ErrUnexpectedContinuation = errors.New("frame: continuation without a fragmented message in progress")
	ErrFragmentInterleaved    = errors.New("frame: new data frame while a fragmented message is in progress")
	ErrPayloadTooLarge        = errors.New("frame: payload exceeds encoder limit")
)
