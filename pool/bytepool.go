// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

// BytePool hands out fixed-size byte slices backed by a SyncPool. Pointers
// are pooled so Put does not allocate.
type BytePool struct {
	pool *SyncPool[*[]byte]
	size int
}

// NewBytePool creates a pool of size-byte buffers. Sizes below 1 become 4096.
func NewBytePool(size int) *BytePool {
	if size < 1 {
		size = 4096
	}
	return &BytePool{
		pool: NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		}),
		size: size,
	}
}

// Size returns the length of every buffer handed out.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer of exactly Size bytes. Contents are undefined.
func (b *BytePool) GetBuffer() *[]byte {
	p := b.pool.Get()
	*p = (*p)[:b.size]
	return p
}

// PutBuffer returns a buffer to the pool. Foreign sizes are dropped.
func (b *BytePool) PutBuffer(p *[]byte) {
	if p == nil || cap(*p) < b.size {
		return
	}
	b.pool.Put(p)
}

// defaultPools caches one BytePool per common receive size.
var defaultPools = map[int]*BytePool{
	1024:  NewBytePool(1024),
	4096:  NewBytePool(4096),
	16384: NewBytePool(16384),
	65536: NewBytePool(65536),
}

// ForSize returns a shared pool for the standard sizes, a new one otherwise.
func ForSize(size int) *BytePool {
	if p, ok := defaultPools[size]; ok {
		return p
	}
	return NewBytePool(size)
}
