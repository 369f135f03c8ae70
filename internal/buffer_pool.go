package internal

import "sync"

// BufferPool recycles byte slices used to render requests.
type BufferPool struct {
	pool    sync.Pool
	maxSize int
}

// NewBufferPool returns a pool of slices with initialSize capacity. Slices
// that grew beyond maxSize are dropped instead of being recycled.
func NewBufferPool(initialSize, maxSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, 0, initialSize)
				return &b
			},
		},
		maxSize: maxSize,
	}
}

func (p *BufferPool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

func (p *BufferPool) Put(buf *[]byte) {
	if cap(*buf) > p.maxSize {
		return
	}
	*buf = (*buf)[:0]
	p.pool.Put(buf)
}
