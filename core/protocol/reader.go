// File: core/protocol/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Resumable frame reader steps.

package protocol

import (
	"encoding/binary"
	"fmt"
)

// Step is one stage of frame parsing.
type Step uint8

const (
	StepHeader Step = iota
	StepExtendedLength
	StepMaskKey
	StepPayload
)

func (s Step) String() string {
	switch s {
	case StepHeader:
		return "header"
	case StepExtendedLength:
		return "extended-length"
	case StepMaskKey:
		return "mask-key"
	case StepPayload:
		return "payload"
	default:
		return fmt.Sprintf("step(%d)", uint8(s))
	}
}

// Status is the outcome of running a step.
type Status uint8

const (
	// NeedMore: resume later at Result.Next with Result.Index.
	NeedMore Status = iota
	// Complete: the frame is fully buffered; Result.Left bytes past its end
	// belong to the next frame.
	Complete
	// Invalid: protocol violation described by Result.Err.
	Invalid
)

func (s Status) String() string {
	switch s {
	case NeedMore:
		return "need-more"
	case Complete:
		return "complete"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Result reports what a step did. Index is the first byte not yet validated;
// bytes before it are never inspected again.
type Result struct {
	Status Status
	Next   Step
	Index  int
	Left   int
	Err    error
}

func needMore(next Step, index int) Result {
	return Result{Status: NeedMore, Next: next, Index: index}
}

func invalid(step Step, index int, err error) Result {
	return Result{Status: Invalid, Next: step, Index: index, Err: err}
}

// Process runs step s starting at index and keeps going through the
// following steps as long as enough bytes are buffered.
func (s Step) Process(index int, h *FrameHeader) Result {
	switch s {
	case StepHeader:
		return processHeader(h)
	case StepExtendedLength:
		return processExtendedLength(index, h)
	case StepMaskKey:
		return processMaskKey(index, h)
	case StepPayload:
		return processPayload(index, h)
	}
	return invalid(s, index, fmt.Errorf("frame: unknown step %d", s))
}

func processHeader(h *FrameHeader) Result {
	if h.buf.Len() < 2 {
		return needMore(StepHeader, 0)
	}
	if !h.haveBase {
		b0, _ := h.buf.ByteAt(0)
		b1, _ := h.buf.ByteAt(1)
		h.setBase(b0, b1)
	}
	op := h.Opcode()
	if !IsKnownOpcode(op) {
		return invalid(StepHeader, 0, fmt.Errorf("%w: 0x%x", ErrReservedOpcode, op))
	}
	if h.IsControl() {
		if !h.Fin() {
			return invalid(StepHeader, 0, ErrControlFragmented)
		}
		if h.LengthCode() > MaxControlPayloadLen {
			return invalid(StepHeader, 0, ErrControlTooLong)
		}
	}
	return afterLength(2, h, h.ExtendedLengthSize() > 0)
}

// afterLength picks the step following the length fields.
func afterLength(index int, h *FrameHeader, extended bool) Result {
	switch {
	case extended:
		return processExtendedLength(index, h)
	case h.Masked():
		return processMaskKey(index, h)
	default:
		return processPayload(index, h)
	}
}

func processExtendedLength(index int, h *FrameHeader) Result {
	size := h.ExtendedLengthSize()
	if h.buf.Len() < index+size {
		return needMore(StepExtendedLength, index)
	}
	raw := h.readBytes(index, size)
	var n uint64
	if size == 2 {
		n = uint64(binary.BigEndian.Uint16(raw[:2]))
	} else {
		n = binary.BigEndian.Uint64(raw[:8])
		if n>>63 != 0 {
			return invalid(StepExtendedLength, index, ErrInvalidLength)
		}
	}
	h.resolve(int64(n))
	return afterLength(index+size, h, false)
}

func processMaskKey(index int, h *FrameHeader) Result {
	if h.buf.Len() < index+4 {
		return needMore(StepMaskKey, index)
	}
	raw := h.readBytes(index, 4)
	h.setMaskKey([4]byte{raw[0], raw[1], raw[2], raw[3]})
	return processPayload(index+4, h)
}

func processPayload(index int, h *FrameHeader) Result {
	h.payloadIndex = index
	n, _ := h.PayloadLength()
	if int64(h.buf.Len())-int64(index) < n {
		return needMore(StepPayload, index)
	}
	return Result{
		Status: Complete,
		Next:   StepHeader,
		Index:  index,
		Left:   h.buf.Len() - index - int(n),
	}
}
