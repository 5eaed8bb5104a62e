// File: client/sockopt_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build windows

package client

import (
	"syscall"

	"golang.org/x/sys/windows"
)

const hasSockoptControl = true

func socketControl(cfg Config) func(network, address string, c syscall.RawConn) error {
	r, w := cfg.SocketBuffers()
	if r == 0 && w == 0 {
		return nil
	}
	return func(_, _ string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			h := windows.Handle(fd)
			if r > 0 {
				if serr = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_RCVBUF, r); serr != nil {
					return
				}
			}
			if w > 0 {
				serr = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_SNDBUF, w)
			}
		})
		if err != nil {
			return err
		}
		return serr
	}
}
