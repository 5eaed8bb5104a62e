// File: core/buffer/utf8.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	minScratch = 16
	maxScratch = 64 << 10
)

// TextSink accumulates decoded UTF-8 text across calls. Bytes of a code
// point split between two ranges are carried until the rest arrives.
// Invalid sequences decode to U+FFFD.
type TextSink struct {
	sb    strings.Builder
	dec   *encoding.Decoder
	dst   []byte
	carry []byte
	runes int
}

// NewTextSink returns a sink whose scratch buffer is sized from hint,
// usually the largest chunk about to be decoded.
func NewTextSink(hint int) *TextSink {
	return &TextSink{
		dec:   unicode.UTF8.NewDecoder(),
		dst:   make([]byte, min(max(hint, minScratch), maxScratch)),
		carry: make([]byte, 0, utf8.UTFMax),
	}
}

// Reset clears accumulated text and any carried partial code point.
func (s *TextSink) Reset() {
	s.sb.Reset()
	s.dec.Reset()
	s.carry = s.carry[:0]
	s.runes = 0
}

// Runes returns the number of code points produced so far.
func (s *TextSink) Runes() int {
	return s.runes
}

// Pending reports whether a partial code point is waiting for more bytes.
func (s *TextSink) Pending() bool {
	return len(s.carry) > 0
}

// Write decodes p, carrying a trailing partial code point.
func (s *TextSink) Write(p []byte) (int, error) {
	n := len(p)
	for len(s.carry) > 0 && len(p) > 0 {
		s.carry = append(s.carry, p[0])
		p = p[1:]
		rest, err := s.transform(s.carry, false)
		if err != nil {
			return n - len(p), err
		}
		s.carry = append(s.carry[:0], rest...)
	}
	if len(p) == 0 {
		return n, nil
	}
	rest, err := s.transform(p, false)
	if err != nil {
		return n, err
	}
	s.carry = append(s.carry[:0], rest...)
	return n, nil
}

// Flush completes decoding. A dangling partial code point becomes U+FFFD.
func (s *TextSink) Flush() error {
	if len(s.carry) == 0 {
		return nil
	}
	_, err := s.transform(s.carry, true)
	s.carry = s.carry[:0]
	return err
}

// String returns the text decoded so far.
func (s *TextSink) String() string {
	return s.sb.String()
}

func (s *TextSink) transform(src []byte, atEOF bool) ([]byte, error) {
	for {
		nDst, nSrc, err := s.dec.Transform(s.dst, src, atEOF)
		if nDst > 0 {
			s.sb.Write(s.dst[:nDst])
			s.runes += utf8.RuneCount(s.dst[:nDst])
		}
		src = src[nSrc:]
		switch {
		case err == nil:
			return nil, nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				s.dst = make([]byte, 2*len(s.dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			return src, nil
		default:
			return nil, err
		}
	}
}

// DecodeUTF8 streams [offset, offset+length) into sink chunk by chunk
// without flattening, and returns the code points added by this call.
func (b *Chunked) DecodeUTF8(offset, length int, sink *TextSink) (int, error) {
	before := sink.runes
	var werr error
	err := b.segments(offset, length, func(seg []byte, _ bool) bool {
		_, werr = sink.Write(seg)
		return werr == nil
	})
	if err != nil {
		return 0, err
	}
	if werr != nil {
		return 0, werr
	}
	return sink.runes - before, nil
}

// DecodeString decodes a complete UTF-8 range into a string.
func (b *Chunked) DecodeString(offset, length int) (string, error) {
	sink := NewTextSink(b.MaxChunkLength())
	if _, err := b.DecodeUTF8(offset, length, sink); err != nil {
		return "", err
	}
	if err := sink.Flush(); err != nil {
		return "", err
	}
	return sink.String(), nil
}
