package engine

import (
	"io"
	"sync"
)

// DefaultBufferSize is the size of the read buffers used to hash files.
const DefaultBufferSize = 1 * 1024 * 1024

// BufferPool lends read buffers to the hashers of all workers.
// A nil *BufferPool is valid and copies with io.Copy's own buffer.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool of size byte buffers; size <= 0 selects DefaultBufferSize.
func NewBufferPool(size int) *BufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	bp := &BufferPool{size: size}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return bp
}

// Size returns the length of the pooled buffers.
func (bp *BufferPool) Size() int {
	if bp == nil {
		return 0
	}
	return bp.size
}

// Get borrows a buffer. Return it with Put.
func (bp *BufferPool) Get() *[]byte {
	return bp.pool.Get().(*[]byte)
}

// Put returns a borrowed buffer. Nil buffers are ignored.
func (bp *BufferPool) Put(b *[]byte) {
	if b != nil {
		bp.pool.Put(b)
	}
}

// Copy streams src into dst through a borrowed buffer.
func (bp *BufferPool) Copy(dst io.Writer, src io.Reader) (int64, error) {
	if bp == nil {
		return io.Copy(dst, src)
	}
	buf := bp.Get()
	defer bp.Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}
