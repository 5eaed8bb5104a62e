// File: core/buffer/chunk.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

// Chunk is a window over a byte slice retained by a Chunked buffer.
// Start is the logical index of the chunk's first byte within its buffer.
type Chunk struct {
	data   []byte
	Offset int
	Length int
	Start  int
	owned  bool
}

// newChunk creates a chunk over data[offset:offset+length]. With copy set the
// bytes are cloned immediately and the chunk owns its storage.
func newChunk(data []byte, offset, length, start int, copy bool) *Chunk {
	if length <= 0 {
		return nil
	}
	c := &Chunk{data: data, Offset: offset, Length: length, Start: start}
	if copy {
		c.retain()
	}
	return c
}

// Bytes returns the chunk contents. The slice aliases the backing array.
func (c *Chunk) Bytes() []byte {
	return c.data[c.Offset : c.Offset+c.Length]
}

// End returns the logical index of the chunk's last byte.
func (c *Chunk) End() int {
	return c.Start + c.Length - 1
}

// Owned reports whether the chunk holds a private copy of its bytes.
func (c *Chunk) Owned() bool {
	return c.owned
}

func (c *Chunk) contains(index int) bool {
	return index >= c.Start && index <= c.End()
}

// retain deep-copies borrowed bytes so the chunk survives reuse of the
// source array by the transport.
func (c *Chunk) retain() {
	if c.owned {
		return
	}
	cp := make([]byte, c.Length)
	copy(cp, c.data[c.Offset:c.Offset+c.Length])
	c.data = cp
	c.Offset = 0
	c.owned = true
}
