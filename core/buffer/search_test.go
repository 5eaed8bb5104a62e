// File: core/buffer/search_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var crlf2 = []byte("\r\n\r\n")

func TestSearchLast_SingleChunk(t *testing.T) {
	b := build("HTTP/1.1 101\r\nA: b\r\n\r\nrest")
	s := NewSearchState(crlf2)
	assert.Equal(t, 21, b.SearchLast(s))
	assert.Equal(t, 0, s.Matched)
}

func TestSearchLast_SplitAtEveryPosition(t *testing.T) {
	msg := "GET / HTTP/1.1\r\nHost: x\r\n\r\ntail"
	want := len("GET / HTTP/1.1\r\nHost: x\r\n\r\n") - 1
	for cut := 1; cut < len(msg); cut++ {
		b := NewChunked()
		s := NewSearchState(crlf2)
		got := -1
		for _, part := range []string{msg[:cut], msg[cut:]} {
			b.Append([]byte(part), 0, len(part), false)
			if got = b.SearchLast(s); got >= 0 {
				break
			}
		}
		assert.Equal(t, want, got, "cut at %d", cut)
	}
}

func TestSearchLast_ByteAtATime(t *testing.T) {
	msg := "a\r\n\r\r\n\r\nb"
	b := NewChunked()
	s := NewSearchState(crlf2)
	got := -1
	for i := 0; i < len(msg) && got < 0; i++ {
		b.Append([]byte(msg), i, 1, false)
		got = b.SearchLast(s)
	}
	assert.Equal(t, 7, got)
}

func TestSearchLast_OverlappingPrefix(t *testing.T) {
	b := build("\r\n\r\r\n\r\n")
	assert.Equal(t, 6, b.SearchLast(NewSearchState(crlf2)))
}

func TestSearchLast_NotFoundKeepsPartial(t *testing.T) {
	b := build("abc\r\n\r")
	s := NewSearchState(crlf2)
	assert.Equal(t, -1, b.SearchLast(s))
	assert.Equal(t, 3, s.Matched)
	s.Reset()
	assert.Equal(t, 0, s.Matched)
}

func TestSearchLast_Empty(t *testing.T) {
	assert.Equal(t, -1, NewChunked().SearchLast(NewSearchState(crlf2)))
	assert.Equal(t, -1, build("x").SearchLast(NewSearchState(nil)))
}

func TestSearchLast_NoNewChunk(t *testing.T) {
	b := build("\r\n")
	s := NewSearchState(crlf2)
	assert.Equal(t, -1, b.SearchLast(s))
	assert.Equal(t, 2, s.Matched)

	// An empty append adds no chunk; the carried match must not run over
	// the same bytes again.
	b.Append([]byte("x"), 0, 0, false)
	assert.Equal(t, -1, b.SearchLast(s))
	assert.Equal(t, 2, s.Matched)

	b.Append([]byte("\r\n"), 0, 2, true)
	assert.Equal(t, 3, b.SearchLast(s))
}
