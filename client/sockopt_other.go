// File: client/sockopt_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !linux && !windows

package client

import "syscall"

const hasSockoptControl = false

func socketControl(Config) func(network, address string, c syscall.RawConn) error {
	return nil
}
