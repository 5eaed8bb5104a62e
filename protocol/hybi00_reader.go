// File: protocol/hybi00_reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental data reader for draft-hixie-76 / hybi-00 framing.

package protocol

import (
	"bytes"
	"fmt"

	"github.com/momentics/hioload-wsc/core/buffer"
	core "github.com/momentics/hioload-wsc/core/protocol"
)

const (
	hybi00FrameEnd  = 0xFF
	hybi00CloseType = 0xFF
)

type hybi00State uint8

const (
	hybi00Type hybi00State = iota
	hybi00Text
	hybi00Length
	hybi00Payload
)

// Hybi00DataReader reads sentinel-delimited text frames (type byte with the
// high bit clear, payload up to 0xFF) and length-prefixed frames (high bit
// set, base-128 length). A length-prefixed frame of type 0xFF and length 0
// is the closing handshake. Every field may be split across reads.
type Hybi00DataReader struct {
	state     hybi00State
	typ       byte
	remaining int64
	buf       *buffer.Chunked
	limit     int64
}

// NewHybi00DataReader returns a reader in its initial state.
func NewHybi00DataReader() *Hybi00DataReader {
	return &Hybi00DataReader{buf: buffer.NewChunked(), limit: core.MaxRetainedPayload}
}

// SetRetainLimit overrides the largest accepted length prefix.
func (r *Hybi00DataReader) SetRetainLimit(n int64) {
	if n > 0 {
		r.limit = n
	}
}

// Feed implements DataReader.
func (r *Hybi00DataReader) Feed(data []byte, offset, length int) (*Message, int, error) {
	p := data[offset : offset+length]
	for len(p) > 0 {
		switch r.state {
		case hybi00Type:
			r.typ = p[0]
			p = p[1:]
			if r.typ&0x80 == 0 {
				r.state = hybi00Text
			} else {
				r.state, r.remaining = hybi00Length, 0
			}

		case hybi00Text:
			end := bytes.IndexByte(p, hybi00FrameEnd)
			if end < 0 {
				r.buf.Append(p, 0, len(p), false)
				r.buf.Retain()
				return nil, 0, nil
			}
			r.buf.Append(p, 0, end, false)
			msg, err := r.textMessage()
			return msg, len(p) - end - 1, err

		case hybi00Length:
			b := p[0]
			p = p[1:]
			r.remaining = r.remaining<<7 | int64(b&0x7F)
			if r.remaining > r.limit {
				r.Reset()
				return nil, 0, fmt.Errorf("%w: length prefix over %d bytes", ErrHybi00Framing, r.limit)
			}
			if b&0x80 != 0 {
				continue
			}
			if r.typ == hybi00CloseType && r.remaining == 0 {
				r.Reset()
				return &Message{Kind: KindClose}, len(p), nil
			}
			if r.remaining == 0 {
				msg, err := r.textMessage()
				return msg, len(p), err
			}
			r.state = hybi00Payload

		case hybi00Payload:
			n := int(min(int64(len(p)), r.remaining))
			r.buf.Append(p, 0, n, false)
			r.remaining -= int64(n)
			p = p[n:]
			if r.remaining > 0 {
				r.buf.Retain()
				return nil, 0, nil
			}
			msg, err := r.textMessage()
			return msg, len(p), err
		}
	}
	r.buf.Retain()
	return nil, 0, nil
}

// textMessage decodes the buffered payload and rearms the reader.
func (r *Hybi00DataReader) textMessage() (*Message, error) {
	text, err := r.buf.DecodeString(0, r.buf.Len())
	r.Reset()
	if err != nil {
		return nil, err
	}
	return &Message{Kind: KindText, Text: text}, nil
}

// Reset returns the reader to expect a frame type byte.
func (r *Hybi00DataReader) Reset() {
	r.state = hybi00Type
	r.typ = 0
	r.remaining = 0
	r.buf.Reset()
}
