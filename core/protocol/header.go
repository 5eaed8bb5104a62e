// File: core/protocol/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame header view over a chunked receive buffer.

package protocol

import "github.com/momentics/hioload-wsc/core/buffer"

// FrameHeader interprets the first bytes of a chunked buffer as a frame
// header. The frame always starts at logical index 0. Fields are filled in by
// the reader steps as their bytes arrive and never change afterwards.
type FrameHeader struct {
	buf *buffer.Chunked

	b0, b1   byte
	haveBase bool

	payloadLen int64
	resolved   bool

	maskKey [4]byte
	maskSet bool

	payloadIndex int
}

// NewFrameHeader binds a header view to buf.
func NewFrameHeader(buf *buffer.Chunked) *FrameHeader {
	return &FrameHeader{buf: buf}
}

// Buffer returns the chunked buffer holding this frame.
func (h *FrameHeader) Buffer() *buffer.Chunked { return h.buf }

// Reset rebinds the view to buf and clears every parsed field.
func (h *FrameHeader) Reset(buf *buffer.Chunked) {
	*h = FrameHeader{buf: buf}
}

func (h *FrameHeader) Fin() bool          { return h.b0&FinBit != 0 }
func (h *FrameHeader) RSV() byte          { return (h.b0 & RSVBits) >> 4 }
func (h *FrameHeader) Opcode() byte       { return h.b0 & OpcodeMsk }
func (h *FrameHeader) Masked() bool       { return h.b1&MaskBit != 0 }
func (h *FrameHeader) LengthCode() byte   { return h.b1 & LengthMsk }
func (h *FrameHeader) IsControl() bool    { return IsControlOpcode(h.Opcode()) }
func (h *FrameHeader) PayloadIndex() int  { return h.payloadIndex }
func (h *FrameHeader) HasBaseBytes() bool { return h.haveBase }

// ExtendedLengthSize is the width of the extended length field, 0, 2 or 8.
func (h *FrameHeader) ExtendedLengthSize() int {
	switch h.LengthCode() {
	case LengthCode16:
		return 2
	case LengthCode64:
		return 8
	}
	return 0
}

// PayloadLength returns the declared payload length and whether it has been
// resolved. Before the extended length bytes arrive it reports false.
func (h *FrameHeader) PayloadLength() (int64, bool) {
	return h.payloadLen, h.resolved
}

// MaskKey returns the mask key once the masking step has read it.
func (h *FrameHeader) MaskKey() ([4]byte, bool) {
	return h.maskKey, h.maskSet
}

func (h *FrameHeader) setBase(b0, b1 byte) {
	h.b0, h.b1, h.haveBase = b0, b1, true
	if code := h.LengthCode(); code < LengthCode16 {
		h.resolve(int64(code))
	}
}

func (h *FrameHeader) resolve(n int64) {
	if h.resolved {
		return
	}
	h.payloadLen, h.resolved = n, true
}

func (h *FrameHeader) setMaskKey(k [4]byte) {
	if h.maskSet {
		return
	}
	h.maskKey, h.maskSet = k, true
}

// readBytes copies n bytes at index from the buffer into a fixed array.
func (h *FrameHeader) readBytes(index, n int) [8]byte {
	var out [8]byte
	h.buf.CopyTo(out[:n], index, 0, n)
	return out
}
