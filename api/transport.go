// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the byte transport a client session runs on.

package api

import "context"

// Transport is a connected byte stream with event callbacks. Received bytes
// are lent to the callback only for the duration of the call; the receive
// array may be reused afterwards.
type Transport interface {
	// Connect establishes the connection and fires OnConnected.
	Connect(ctx context.Context) error

	// Send writes buffers in order as one logical write. Safe for concurrent use.
	Send(buffers [][]byte) error

	// Close shuts the connection down and fires OnClosed once.
	Close() error

	// IsConnected reports whether the connection is established.
	IsConnected() bool

	// SetEvents installs the callbacks. Call before Connect.
	SetEvents(ev TransportEvents)
}

// TransportEvents receives notifications from a Transport. OnDataReceived
// is invoked sequentially from a single goroutine.
type TransportEvents interface {
	OnConnected()
	OnClosed()
	OnError(err error)
	OnDataReceived(data []byte, offset, length int)
}
