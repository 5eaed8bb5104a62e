// Package session
// Author: momentics <momentics@gmail.com>
//
// Per-session state shared between the receive goroutine, timers and
// application callbacks.
package session
