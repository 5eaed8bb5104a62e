// File: core/buffer/chunked.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Append-only chunk list with logical indexing across receive boundaries.

package buffer

import (
	"errors"
	"fmt"
	"iter"
	"sort"
)

// ErrOutOfRange is returned when a logical index or range falls outside the
// buffered bytes.
var ErrOutOfRange = errors.New("buffer: index out of range")

// Chunked is a logical byte sequence assembled from chunks. It is not safe
// for concurrent use; a connection's receive path owns it exclusively.
type Chunked struct {
	chunks    []*Chunk
	length    int
	cached    *Chunk
	cachedPos int
}

// NewChunked returns an empty buffer.
func NewChunked() *Chunked {
	return &Chunked{chunks: make([]*Chunk, 0, 4)}
}

// Len returns the logical length, the sum of all chunk lengths.
func (b *Chunked) Len() int {
	return b.length
}

// ChunkCount returns the number of chunks currently held.
func (b *Chunked) ChunkCount() int {
	return len(b.chunks)
}

// MaxChunkLength returns the length of the largest chunk, 0 when empty.
func (b *Chunked) MaxChunkLength() int {
	max := 0
	for _, c := range b.chunks {
		if c.Length > max {
			max = c.Length
		}
	}
	return max
}

// Append adds data[offset:offset+length] as a new chunk. When copy is false
// the chunk borrows data; call Retain before the caller reuses that array.
// Empty ranges are ignored and yield nil.
func (b *Chunked) Append(data []byte, offset, length int, copy bool) *Chunk {
	c := newChunk(data, offset, length, b.length, copy)
	if c == nil {
		return nil
	}
	b.chunks = append(b.chunks, c)
	b.length += c.Length
	return c
}

// ByteAt returns the byte at logical index i.
func (b *Chunked) ByteAt(i int) (byte, error) {
	c, _ := b.locate(i)
	if c == nil {
		return 0, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, b.length)
	}
	return c.data[c.Offset+i-c.Start], nil
}

// locate finds the chunk holding logical index i and its position.
func (b *Chunked) locate(i int) (*Chunk, int) {
	if i < 0 || i >= b.length {
		return nil, -1
	}
	if c := b.cached; c != nil && c.contains(i) {
		return c, b.cachedPos
	}
	pos := sort.Search(len(b.chunks), func(k int) bool {
		return b.chunks[k].Start > i
	}) - 1
	if pos < 0 {
		return nil, -1
	}
	c := b.chunks[pos]
	if !c.contains(i) {
		return nil, -1
	}
	b.cached, b.cachedPos = c, pos
	return c, pos
}

// Range yields chunks starting at chunk position from. The sequence is lazy
// and may be iterated any number of times.
func (b *Chunked) Range(from int) iter.Seq2[int, *Chunk] {
	return func(yield func(int, *Chunk) bool) {
		if from < 0 {
			from = 0
		}
		for i := from; i < len(b.chunks); i++ {
			if !yield(i, b.chunks[i]) {
				return
			}
		}
	}
}

// segments walks the byte range [start, start+length) chunk by chunk.
func (b *Chunked) segments(start, length int, fn func(seg []byte, last bool) bool) error {
	if length == 0 {
		return nil
	}
	if start < 0 || length < 0 || start+length > b.length {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfRange, start, start+length, b.length)
	}
	c, pos := b.locate(start)
	if c == nil {
		return fmt.Errorf("%w: %d of %d", ErrOutOfRange, start, b.length)
	}
	from := start - c.Start
	remaining := length
	for _, chunk := range b.Range(pos) {
		n := min(chunk.Length-from, remaining)
		seg := chunk.data[chunk.Offset+from : chunk.Offset+from+n]
		remaining -= n
		if !fn(seg, remaining == 0) || remaining == 0 {
			break
		}
		from = 0
	}
	return nil
}

// Flatten materializes [start, start+length) into a new contiguous slice.
func (b *Chunked) Flatten(start, length int) ([]byte, error) {
	out := make([]byte, 0, max(length, 0))
	err := b.segments(start, length, func(seg []byte, _ bool) bool {
		out = append(out, seg...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CopyTo copies up to length bytes starting at logical srcIndex into
// dst[dstIndex:], clamped to both the buffer and dst. It returns the number
// of bytes copied.
func (b *Chunked) CopyTo(dst []byte, srcIndex, dstIndex, length int) int {
	if srcIndex < 0 || dstIndex < 0 || dstIndex > len(dst) {
		return 0
	}
	length = min(length, b.length-srcIndex, len(dst)-dstIndex)
	if length <= 0 {
		return 0
	}
	copied := 0
	_ = b.segments(srcIndex, length, func(seg []byte, _ bool) bool {
		copied += copy(dst[dstIndex+copied:], seg)
		return true
	})
	return copied
}

// RemoveChunkAt drops the chunk at position i and shifts the logical start
// of every following chunk.
func (b *Chunked) RemoveChunkAt(i int) {
	if i < 0 || i >= len(b.chunks) {
		return
	}
	removed := b.chunks[i]
	b.chunks = append(b.chunks[:i], b.chunks[i+1:]...)
	for _, c := range b.chunks[i:] {
		c.Start -= removed.Length
	}
	b.length -= removed.Length
	b.cached = nil
}

// TrimEnd removes the last n logical bytes, deleting or shrinking trailing
// chunks.
func (b *Chunked) TrimEnd(n int) {
	if n <= 0 {
		return
	}
	if n >= b.length {
		b.Reset()
		return
	}
	for n > 0 {
		last := b.chunks[len(b.chunks)-1]
		if last.Length <= n {
			n -= last.Length
			b.length -= last.Length
			b.chunks = b.chunks[:len(b.chunks)-1]
			continue
		}
		last.Length -= n
		b.length -= n
		n = 0
	}
	b.cached = nil
}

// Retain deep-copies every borrowed chunk. Call it before returning control
// to a transport that reuses its receive array while bytes are still
// buffered here.
func (b *Chunked) Retain() {
	for _, c := range b.chunks {
		c.retain()
	}
}

// Reset drops all chunks.
func (b *Chunked) Reset() {
	clear(b.chunks)
	b.chunks = b.chunks[:0]
	b.length = 0
	b.cached = nil
}
