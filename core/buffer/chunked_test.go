// File: core/buffer/chunked_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(parts ...string) *Chunked {
	b := NewChunked()
	for _, p := range parts {
		b.Append([]byte(p), 0, len(p), false)
	}
	return b
}

func TestChunked_AppendAndIndex(t *testing.T) {
	b := build("abc", "", "de", "fghij")
	require.Equal(t, 10, b.Len())
	assert.Equal(t, 3, b.ChunkCount(), "empty ranges are not stored")
	assert.Equal(t, 5, b.MaxChunkLength())

	want := "abcdefghij"
	for i := range want {
		c, err := b.ByteAt(i)
		require.NoError(t, err)
		assert.Equal(t, want[i], c, "index %d", i)
	}
	// backwards to defeat the locality cache
	for i := len(want) - 1; i >= 0; i-- {
		c, err := b.ByteAt(i)
		require.NoError(t, err)
		assert.Equal(t, want[i], c)
	}

	_, err := b.ByteAt(10)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = b.ByteAt(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestChunked_AppendSubrange(t *testing.T) {
	b := NewChunked()
	src := []byte("xxhelloyy")
	c := b.Append(src, 2, 5, false)
	require.NotNil(t, c)
	assert.Equal(t, "hello", string(c.Bytes()))
	assert.Equal(t, 0, c.Start)
	assert.Equal(t, 4, c.End())
	assert.False(t, c.Owned())
}

func TestChunked_FlattenAcrossChunks(t *testing.T) {
	b := build("ab", "cde", "f")
	out, err := b.Flatten(1, 4)
	require.NoError(t, err)
	assert.Equal(t, "bcde", string(out))

	out, err = b.Flatten(0, 0)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = b.Flatten(4, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestChunked_CopyToClamps(t *testing.T) {
	b := build("hel", "lo ", "world")
	dst := make([]byte, 8)
	n := b.CopyTo(dst, 2, 1, 100)
	assert.Equal(t, 7, n)
	assert.Equal(t, "\x00llo wor", string(dst))

	assert.Equal(t, 0, b.CopyTo(dst, 11, 0, 4))
	assert.Equal(t, 0, b.CopyTo(dst, 0, 9, 4))
}

func TestChunked_TrimEnd(t *testing.T) {
	b := build("abc", "de", "fgh")
	b.TrimEnd(4)
	assert.Equal(t, 4, b.Len())
	assert.Equal(t, 2, b.ChunkCount())
	out, err := b.Flatten(0, b.Len())
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(out))

	b.TrimEnd(0)
	assert.Equal(t, 4, b.Len())

	b.TrimEnd(10)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.ChunkCount())
}

func TestChunked_RemoveChunkAtShiftsStarts(t *testing.T) {
	b := build("ab", "cd", "ef")
	_, _ = b.ByteAt(5) // warm cache on the last chunk
	b.RemoveChunkAt(0)
	assert.Equal(t, 4, b.Len())
	c, err := b.ByteAt(0)
	require.NoError(t, err)
	assert.Equal(t, byte('c'), c)
	c, err = b.ByteAt(3)
	require.NoError(t, err)
	assert.Equal(t, byte('f'), c)
}

func TestChunked_RetainDetachesBorrowedBytes(t *testing.T) {
	src := []byte("borrowed")
	b := NewChunked()
	b.Append(src, 0, len(src), false)
	b.Retain()
	copy(src, "XXXXXXXX")

	out, err := b.Flatten(0, b.Len())
	require.NoError(t, err)
	assert.Equal(t, "borrowed", string(out))
	for _, c := range b.Range(0) {
		assert.True(t, c.Owned())
	}
}

func TestChunked_AppendCopy(t *testing.T) {
	src := []byte("abc")
	b := NewChunked()
	b.Append(src, 0, 3, true)
	src[0] = 'z'
	c, _ := b.ByteAt(0)
	assert.Equal(t, byte('a'), c)
}

func TestChunked_RangeIsRestartable(t *testing.T) {
	b := build("a", "b", "c")
	seq := b.Range(1)
	for range 2 {
		var got []int
		for pos, c := range seq {
			got = append(got, pos)
			assert.Equal(t, pos, c.Start)
		}
		assert.Equal(t, []int{1, 2}, got)
	}
}
