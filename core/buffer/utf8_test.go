// File: core/buffer/utf8_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeString_SplitCodePoints(t *testing.T) {
	text := "añ€😀z"
	raw := []byte(text)
	for cut := 1; cut < len(raw); cut++ {
		b := NewChunked()
		b.Append(raw, 0, cut, false)
		b.Append(raw, cut, len(raw)-cut, false)
		got, err := b.DecodeString(0, b.Len())
		require.NoError(t, err)
		assert.Equal(t, text, got, "cut at %d", cut)
	}
}

func TestDecodeString_ByteChunks(t *testing.T) {
	raw := []byte("héllo wörld 😀")
	b := NewChunked()
	for i := range raw {
		b.Append(raw, i, 1, false)
	}
	got, err := b.DecodeString(0, b.Len())
	require.NoError(t, err)
	assert.Equal(t, string(raw), got)
}

func TestDecodeUTF8_CarryAcrossCalls(t *testing.T) {
	euro := []byte("€")
	first := build("x", string(euro[:1]))
	second := build(string(euro[1:]), "y")

	sink := NewTextSink(4)
	n, err := first.DecodeUTF8(0, first.Len(), sink)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, sink.Pending())

	n, err = second.DecodeUTF8(0, second.Len(), sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, sink.Flush())
	assert.Equal(t, "x€y", sink.String())
	assert.Equal(t, 3, sink.Runes())
}

func TestDecodeString_InvalidBecomesReplacement(t *testing.T) {
	b := build("a\xffb")
	got, err := b.DecodeString(0, b.Len())
	require.NoError(t, err)
	assert.Equal(t, "a�b", got)
}

func TestTextSink_FlushDanglingPrefix(t *testing.T) {
	sink := NewTextSink(0)
	_, err := sink.Write([]byte{'o', 'k', 0xE2, 0x82})
	require.NoError(t, err)
	require.NoError(t, sink.Flush())
	assert.Equal(t, "ok�", sink.String())

	sink.Reset()
	assert.Empty(t, sink.String())
	assert.False(t, sink.Pending())
}

func TestDecodeString_LargeOutputGrowsScratch(t *testing.T) {
	raw := make([]byte, 0, 3000)
	for range 1000 {
		raw = append(raw, "€"...)
	}
	b := NewChunked()
	b.Append(raw, 0, len(raw), false)
	got, err := b.DecodeString(0, b.Len())
	require.NoError(t, err)
	assert.Equal(t, string(raw), got)
}
