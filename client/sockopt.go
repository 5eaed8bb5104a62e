// File: client/sockopt.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"net"
	"time"
)

var noDeadline time.Time

// applySocketBuffers sets buffer sizes through the portable API on systems
// without a dialer Control hook.
func applySocketBuffers(c *net.TCPConn, cfg Config) {
	if hasSockoptControl {
		return
	}
	r, w := cfg.SocketBuffers()
	if r > 0 {
		_ = c.SetReadBuffer(r)
	}
	if w > 0 {
		_ = c.SetWriteBuffer(w)
	}
}
