// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants

package protocol

const (
	// Data opcodes (<0x8)
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2

	// Control opcodes (>=0x8)
	OpcodeClose = 0x8
	OpcodePing  = 0x9
	OpcodePong  = 0xA

	// Frame limit settings
	MaxControlPayloadLen = 125
	MaxCloseReasonLen    = MaxControlPayloadLen - 2
	MaxFrameHeaderLen    = 14 // for extended payloads with masking

	// MaxRetainedPayload is the largest payload the reader keeps in memory.
	// Longer payloads are consumed from the stream and dropped.
	MaxRetainedPayload = 25 << 20

	// Bit masks
	FinBit    = 0x80
	RSVBits   = 0x70
	OpcodeMsk = 0x0F
	MaskBit   = 0x80
	LengthMsk = 0x7F

	// 7-bit length codes announcing an extended length field
	LengthCode16 = 126
	LengthCode64 = 127

	// Close codes
	CloseNormalClosure      = 1000
	CloseGoingAway          = 1001
	CloseProtocolError      = 1002
	CloseUnsupportedData    = 1003
	CloseTooLargeHybi10     = 1004
	CloseNoStatusRcvd       = 1005
	CloseAbnormalClosure    = 1006
	CloseInvalidPayloadData = 1007
	ClosePolicyViolation    = 1008
	CloseMessageTooBig      = 1009
	CloseMissingExtension   = 1010
	CloseInternalServerErr  = 1011
)

// IsControlOpcode reports whether op is a control frame opcode.
func IsControlOpcode(op byte) bool {
	return op&0x08 != 0
}

// IsKnownOpcode reports whether op is defined by RFC 6455.
func IsKnownOpcode(op byte) bool {
	switch op {
	case OpcodeContinuation, OpcodeText, OpcodeBinary, OpcodeClose, OpcodePing, OpcodePong:
		return true
	}
	return false
}
