package pool

import (
	"bytes"
	"sync"
)

// BufferPool manages reusable part-sized buffers to reduce allocations.
type BufferPool struct {
	pool *sync.Pool
}

// NewBufferPool creates a pool whose buffers are pre-grown to sizeHint bytes.
func NewBufferPool(sizeHint int64) *BufferPool {
	return &BufferPool{
		pool: &sync.Pool{
			New: func() interface{} {
				buf := &bytes.Buffer{}
				if sizeHint > 0 {
					buf.Grow(int(sizeHint))
				}
				return buf
			},
		},
	}
}

// Get returns an empty buffer from the pool.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() *bytes.Buffer {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool.
// The buffer should not be used after calling Put.
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	bp.pool.Put(buf)
}
