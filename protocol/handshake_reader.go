// File: protocol/handshake_reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Opening handshake response readers.

package protocol

import (
	"fmt"
	"strings"

	"github.com/momentics/hioload-wsc/core/buffer"
	core "github.com/momentics/hioload-wsc/core/protocol"
)

const badRequestPrefix = "HTTP/1.1 400 "

var headerTerminator = []byte("\r\n\r\n")

// HandshakeReader consumes the server's handshake response. Feed returns a
// message once one is complete, together with the number of trailing bytes
// in data[offset:offset+length] that belong to whatever follows. A nil
// message with a nil error means more bytes are needed.
type HandshakeReader interface {
	Feed(data []byte, offset, length int) (*Message, int, error)
	Reset()
}

// HTTPHandshakeReader reads an HTTP response header block terminated by a
// blank line. It serves hybi-10 and RFC 6455.
type HTTPHandshakeReader struct {
	buf    *buffer.Chunked
	search *buffer.SearchState
	limit  int
}

// NewHTTPHandshakeReader returns a reader bounded by
// core.MaxHandshakeHeadersSize.
func NewHTTPHandshakeReader() *HTTPHandshakeReader {
	return &HTTPHandshakeReader{
		buf:    buffer.NewChunked(),
		search: buffer.NewSearchState(headerTerminator),
		limit:  core.MaxHandshakeHeadersSize,
	}
}

// Feed implements HandshakeReader. A 400 response is reported as
// KindBadRequest; the caller decides what to do with it.
func (r *HTTPHandshakeReader) Feed(data []byte, offset, length int) (*Message, int, error) {
	r.buf.Append(data, offset, length, false)
	end := r.buf.SearchLast(r.search)
	if end < 0 {
		if r.buf.Len() > r.limit {
			n := r.buf.Len()
			r.Reset()
			return nil, 0, fmt.Errorf("%w: %d bytes without terminator", ErrHandshakeTooLarge, n)
		}
		r.buf.Retain()
		return nil, 0, nil
	}

	head, err := r.buf.DecodeString(0, end+1-len(headerTerminator))
	if err != nil {
		r.Reset()
		return nil, 0, err
	}
	left := r.buf.Len() - (end + 1)
	r.Reset()

	kind := KindHandshake
	if hasPrefixFold(head, badRequestPrefix) {
		kind = KindBadRequest
	}
	return &Message{Kind: kind, Text: head}, left, nil
}

// Reset drops buffered bytes and any partial terminator match.
func (r *HTTPHandshakeReader) Reset() {
	r.buf.Reset()
	r.search.Reset()
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Hixie76ChallengeLen is the size of the hybi-00 server challenge response.
const Hixie76ChallengeLen = 16

// Hybi00HandshakeReader reads the header block and then exactly 16 challenge
// response bytes, which may arrive in any number of pieces.
type Hybi00HandshakeReader struct {
	head      *HTTPHandshakeReader
	pending   *Message
	challenge [Hixie76ChallengeLen]byte
	got       int
}

// NewHybi00HandshakeReader returns a reader for pre-standard handshakes.
func NewHybi00HandshakeReader() *Hybi00HandshakeReader {
	return &Hybi00HandshakeReader{head: NewHTTPHandshakeReader()}
}

// Feed implements HandshakeReader.
func (r *Hybi00HandshakeReader) Feed(data []byte, offset, length int) (*Message, int, error) {
	if r.pending == nil {
		msg, left, err := r.head.Feed(data, offset, length)
		if err != nil || msg == nil || msg.Kind == KindBadRequest {
			return msg, left, err
		}
		r.pending = msg
		offset, length = offset+length-left, left
	}

	n := copy(r.challenge[r.got:], data[offset:offset+length])
	r.got += n
	left := length - n
	if r.got < Hixie76ChallengeLen {
		return nil, 0, nil
	}

	msg := r.pending
	msg.Data = append([]byte(nil), r.challenge[:]...)
	r.Reset()
	return msg, left, nil
}

// Reset discards all progress.
func (r *Hybi00HandshakeReader) Reset() {
	r.head.Reset()
	r.pending = nil
	r.got = 0
}
