// File: protocol/frame_reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental data reader for hybi-10 and RFC 6455 framing.

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-wsc/core/buffer"
	core "github.com/momentics/hioload-wsc/core/protocol"
)

// DataReader turns received bytes into logical messages. It has the same
// Feed contract as HandshakeReader: a returned message comes with the count
// of trailing bytes the caller must feed again.
type DataReader interface {
	Feed(data []byte, offset, length int) (*Message, int, error)
	Reset()
}

// bufferedFrame is a complete frame held until its message is assembled.
type bufferedFrame struct {
	header    *core.FrameHeader
	truncated bool
}

func (f *bufferedFrame) payload() (int, int) {
	if f.truncated {
		return f.header.PayloadIndex(), 0
	}
	n, _ := f.header.PayloadLength()
	return f.header.PayloadIndex(), int(n)
}

// FrameReaderStats is a snapshot of a reader's resume state.
type FrameReaderStats struct {
	Step          string
	Index         int
	Buffered      int
	Fragments     int
	Skipping      bool
	SkipRemaining int64
}

// FrameDataReader drives the frame steps over a per-frame chunked buffer,
// reassembles fragmented messages and lets control frames pass between
// fragments. Payloads over the retention limit are read through without
// being stored.
type FrameDataReader struct {
	header *core.FrameHeader
	step   core.Step
	index  int

	fragments *queue.Queue

	skipping      bool
	skipRemaining int64

	limit    int64
	noStatus int
	sink     *buffer.TextSink
}

// NewFrameDataReader returns a reader that reports noStatusCode for close
// frames without a body.
func NewFrameDataReader(noStatusCode int) *FrameDataReader {
	return &FrameDataReader{
		header:    core.NewFrameHeader(buffer.NewChunked()),
		fragments: queue.New(),
		limit:     core.MaxRetainedPayload,
		noStatus:  noStatusCode,
		sink:      buffer.NewTextSink(4096),
	}
}

// SetRetainLimit overrides the payload retention limit.
func (r *FrameDataReader) SetRetainLimit(n int64) {
	if n > 0 {
		r.limit = n
	}
}

// Stats reports the current resume state.
func (r *FrameDataReader) Stats() FrameReaderStats {
	return FrameReaderStats{
		Step:          r.step.String(),
		Index:         r.index,
		Buffered:      r.header.Buffer().Len(),
		Fragments:     r.fragments.Length(),
		Skipping:      r.skipping,
		SkipRemaining: r.skipRemaining,
	}
}

// Feed implements DataReader.
func (r *FrameDataReader) Feed(data []byte, offset, length int) (*Message, int, error) {
	if r.skipping {
		return r.feedSkipping(length)
	}

	buf := r.header.Buffer()
	buf.Append(data, offset, length, false)
	res := r.step.Process(r.index, r.header)

	switch res.Status {
	case core.Invalid:
		r.Reset()
		return nil, 0, fmt.Errorf("decode %s: %w", res.Next, res.Err)

	case core.NeedMore:
		if res.Next == core.StepPayload {
			if n, _ := r.header.PayloadLength(); n > r.limit {
				r.beginSkip(res.Index, n)
				return nil, 0, nil
			}
		}
		r.step, r.index = res.Next, res.Index
		buf.Retain()
		return nil, 0, nil
	}

	buf.TrimEnd(res.Left)
	f := &bufferedFrame{header: r.header}
	if n, _ := r.header.PayloadLength(); n > r.limit {
		buf.TrimEnd(int(n))
		f.truncated = true
	}
	r.nextFrame()
	msg, err := r.accept(f)
	return msg, res.Left, err
}

// beginSkip drops the buffered part of an oversized payload and switches to
// counting the rest as it streams past.
func (r *FrameDataReader) beginSkip(payloadIndex int, n int64) {
	buf := r.header.Buffer()
	seen := buf.Len() - payloadIndex
	buf.TrimEnd(seen)
	buf.Retain()
	r.skipping = true
	r.skipRemaining = n - int64(seen)
	r.step, r.index = core.StepPayload, payloadIndex
}

func (r *FrameDataReader) feedSkipping(length int) (*Message, int, error) {
	n := int64(length)
	if n < r.skipRemaining {
		r.skipRemaining -= n
		return nil, 0, nil
	}
	left := int(n - r.skipRemaining)
	f := &bufferedFrame{header: r.header, truncated: true}
	r.nextFrame()
	msg, err := r.accept(f)
	return msg, left, err
}

// nextFrame starts a fresh buffer; the finished one may still be queued.
func (r *FrameDataReader) nextFrame() {
	r.header = core.NewFrameHeader(buffer.NewChunked())
	r.step, r.index = core.StepHeader, 0
	r.skipping, r.skipRemaining = false, 0
}

// accept routes a complete frame: control frames become messages at once,
// data frames join or finish the fragment sequence.
func (r *FrameDataReader) accept(f *bufferedFrame) (*Message, error) {
	h := f.header
	if h.IsControl() {
		return r.decode([]*bufferedFrame{f})
	}

	if h.Opcode() == core.OpcodeContinuation {
		if r.fragments.Length() == 0 {
			return nil, core.ErrUnexpectedContinuation
		}
	} else if r.fragments.Length() > 0 {
		r.clearFragments()
		return nil, core.ErrFragmentInterleaved
	}

	if !h.Fin() {
		h.Buffer().Retain()
		r.fragments.Add(f)
		return nil, nil
	}
	if r.fragments.Length() == 0 {
		return r.decode([]*bufferedFrame{f})
	}

	frames := make([]*bufferedFrame, 0, r.fragments.Length()+1)
	for r.fragments.Length() > 0 {
		frames = append(frames, r.fragments.Remove().(*bufferedFrame))
	}
	return r.decode(append(frames, f))
}

func (r *FrameDataReader) decode(frames []*bufferedFrame) (*Message, error) {
	msg := &Message{}
	for _, f := range frames {
		if f.truncated {
			msg.Truncated = true
			continue
		}
		if key, ok := f.header.MaskKey(); ok {
			start, n := f.payload()
			if err := f.header.Buffer().ApplyMask(key, start, n); err != nil {
				return nil, err
			}
		}
	}

	if msg.Truncated {
		// A message with any dropped fragment carries no payload at all.
		return r.decodeTruncated(msg, frames[0].header.Opcode())
	}

	switch frames[0].header.Opcode() {
	case core.OpcodeText:
		msg.Kind = KindText
		return msg, r.decodeText(msg, frames)
	case core.OpcodePing:
		msg.Kind = KindPing
		return msg, r.decodeText(msg, frames)
	case core.OpcodePong:
		msg.Kind = KindPong
		return msg, r.decodeText(msg, frames)
	case core.OpcodeBinary:
		msg.Kind = KindBinary
		total := 0
		for _, f := range frames {
			_, n := f.payload()
			total += n
		}
		msg.Data = make([]byte, total)
		at := 0
		for _, f := range frames {
			start, n := f.payload()
			at += f.header.Buffer().CopyTo(msg.Data, start, at, n)
		}
		return msg, nil
	case core.OpcodeClose:
		msg.Kind = KindClose
		return msg, r.decodeClose(msg, frames[0])
	}
	return nil, fmt.Errorf("%w: 0x%x", core.ErrReservedOpcode, frames[0].header.Opcode())
}

func (r *FrameDataReader) decodeTruncated(msg *Message, opcode byte) (*Message, error) {
	switch opcode {
	case core.OpcodeText:
		msg.Kind = KindText
	case core.OpcodeBinary:
		msg.Kind = KindBinary
	case core.OpcodePing:
		msg.Kind = KindPing
	case core.OpcodePong:
		msg.Kind = KindPong
	case core.OpcodeClose:
		msg.Kind = KindClose
		msg.CloseCode = r.noStatus
	default:
		return nil, fmt.Errorf("%w: 0x%x", core.ErrReservedOpcode, opcode)
	}
	return msg, nil
}

func (r *FrameDataReader) decodeText(msg *Message, frames []*bufferedFrame) error {
	r.sink.Reset()
	for _, f := range frames {
		start, n := f.payload()
		if _, err := f.header.Buffer().DecodeUTF8(start, n, r.sink); err != nil {
			return err
		}
	}
	if err := r.sink.Flush(); err != nil {
		return err
	}
	msg.Text = r.sink.String()
	return nil
}

func (r *FrameDataReader) decodeClose(msg *Message, f *bufferedFrame) error {
	start, n := f.payload()
	buf := f.header.Buffer()
	if n < 2 {
		msg.CloseCode = r.noStatus
		return nil
	}
	var code [2]byte
	buf.CopyTo(code[:], start, 0, 2)
	msg.CloseCode = int(binary.BigEndian.Uint16(code[:]))
	reason, err := buf.DecodeString(start+2, n-2)
	if err != nil {
		return err
	}
	msg.Text = reason
	return nil
}

func (r *FrameDataReader) clearFragments() {
	for r.fragments.Length() > 0 {
		r.fragments.Remove()
	}
}

// Reset discards the current frame and every pending fragment.
func (r *FrameDataReader) Reset() {
	r.clearFragments()
	r.nextFrame()
	r.sink.Reset()
}
