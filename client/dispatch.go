// File: client/dispatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"sync"

	"github.com/momentics/hioload-wsc/protocol"
)

// Command handles one kind of decoded message for a session.
type Command interface {
	Execute(s *Session, msg *protocol.Message)
}

// CommandFunc adapts a function to Command.
type CommandFunc func(s *Session, msg *protocol.Message)

// Execute implements Command.
func (f CommandFunc) Execute(s *Session, msg *protocol.Message) { f(s, msg) }

// Dispatcher maps message kinds to commands. Messages of unregistered kinds
// are dropped.
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[protocol.MessageKind]Command
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: make(map[protocol.MessageKind]Command)}
}

// DefaultDispatcher wires the built-in session commands.
func DefaultDispatcher() *Dispatcher {
	d := NewDispatcher()
	d.Register(protocol.KindHandshake, CommandFunc((*Session).onHandshake))
	d.Register(protocol.KindBadRequest, CommandFunc((*Session).onBadRequest))
	d.Register(protocol.KindText, CommandFunc((*Session).onText))
	d.Register(protocol.KindBinary, CommandFunc((*Session).onBinary))
	d.Register(protocol.KindClose, CommandFunc((*Session).onClose))
	d.Register(protocol.KindPing, CommandFunc((*Session).onPing))
	d.Register(protocol.KindPong, CommandFunc((*Session).onPong))
	return d
}

// Register installs or replaces the command for kind.
func (d *Dispatcher) Register(kind protocol.MessageKind, c Command) {
	d.mu.Lock()
	d.commands[kind] = c
	d.mu.Unlock()
}

// Dispatch runs the command registered for msg.Kind and reports whether
// one was found.
func (d *Dispatcher) Dispatch(s *Session, msg *protocol.Message) bool {
	d.mu.RLock()
	c, ok := d.commands[msg.Kind]
	d.mu.RUnlock()
	if ok {
		c.Execute(s, msg)
	}
	return ok
}
