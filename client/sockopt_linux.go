// File: client/sockopt_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build linux

package client

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const hasSockoptControl = true

// socketControl sizes SO_RCVBUF/SO_SNDBUF before connect so the TCP window
// is negotiated with them.
func socketControl(cfg Config) func(network, address string, c syscall.RawConn) error {
	r, w := cfg.SocketBuffers()
	if r == 0 && w == 0 {
		return nil
	}
	return func(_, _ string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			if r > 0 {
				if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, r); serr != nil {
					return
				}
			}
			if w > 0 {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, w)
			}
		})
		if err != nil {
			return err
		}
		return serr
	}
}
