// File: core/buffer/mask.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

// ApplyMask XORs the logical range [offset, offset+length) in place with key.
// The key index restarts at offset, so applying the same mask twice restores
// the original bytes. Borrowed chunks are retained first so the transport's
// array is never written.
func (b *Chunked) ApplyMask(key [4]byte, offset, length int) error {
	if length == 0 {
		return nil
	}
	c, pos := b.locate(offset)
	if c == nil || offset+length > b.length || length < 0 {
		return ErrOutOfRange
	}
	for _, chunk := range b.Range(pos) {
		if chunk.Start >= offset+length {
			break
		}
		chunk.retain()
	}
	k := 0
	return b.segments(offset, length, func(seg []byte, _ bool) bool {
		for i := range seg {
			seg[i] ^= key[k&3]
			k++
		}
		return true
	})
}

// MaskBytes XORs p in place with key starting at key index 0.
func MaskBytes(key [4]byte, p []byte) {
	for i := range p {
		p[i] ^= key[i&3]
	}
}
