// Package optimize holds small allocation-avoidance helpers for hot paths.
package optimize

import "sync"

// BytePool recycles fixed-size byte slices. Segment ingest copies media
// chunks on every upload, so the copy buffers are pooled instead of
// allocated per request.
type BytePool struct {
	pool sync.Pool
	size int
}

func NewBytePool(size int) *BytePool {
	return &BytePool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns a slice to the pool. Slices that shrank below the pool size
// are dropped.
func (p *BytePool) Put(b []byte) {
	if cap(b) >= p.size {
		p.pool.Put(b[:p.size])
	}
}
