// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-wsc.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrTransportClosed  = fmt.Errorf("transport is closed")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrOperationTimeout = fmt.Errorf("operation timeout")
	ErrNotSupported     = fmt.Errorf("operation not supported")
	ErrNotOpen          = fmt.Errorf("you must send data by websocket after websocket is opened")
	ErrAlreadyStarted   = fmt.Errorf("session already started")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeTimeout
	ErrCodeNotSupported
	ErrCodeProtocol
	ErrCodeHandshake
	ErrCodeTransport
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid-argument"
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeNotSupported:
		return "not-supported"
	case ErrCodeProtocol:
		return "protocol"
	case ErrCodeHandshake:
		return "handshake"
	case ErrCodeTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error around cause.
func WrapError(code ErrorCode, message string, cause error) *Error {
	e := NewError(code, message)
	e.Err = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
