// Package buffer pools the fixed-size chunk buffers used by the stream relay.
package buffer

import (
	"github.com/valyala/bytebufferpool"
)

// DefaultChunkSize balances per-chunk write overhead against memory held per stream.
const DefaultChunkSize = 256 * 1024

// ChunkPool hands out byte buffers whose B slice is exactly Size() bytes long.
// Safe for concurrent use.
type ChunkPool struct {
	pool *bytebufferpool.Pool
	size int
}

// NewChunkPool creates a ChunkPool for chunks of size bytes; size <= 0 selects DefaultChunkSize.
func NewChunkPool(size int) *ChunkPool {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkPool{
		pool: &bytebufferpool.Pool{},
		size: size,
	}
}

// Get returns a buffer with len(B) == Size(). Contents are unspecified.
func (cp *ChunkPool) Get() *bytebufferpool.ByteBuffer {
	buf := cp.pool.Get()
	if cap(buf.B) < cp.size {
		buf.B = make([]byte, cp.size)
	}
	buf.B = buf.B[:cp.size]
	return buf
}

// Put returns buf to the pool. The caller must not use buf afterwards.
func (cp *ChunkPool) Put(buf *bytebufferpool.ByteBuffer) {
	if buf != nil {
		cp.pool.Put(buf)
	}
}

// Size returns the chunk size in bytes.
func (cp *ChunkPool) Size() int {
	return cp.size
}
