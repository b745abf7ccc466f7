package util

import (
	"sync"
)

type BufferPool interface {
	Get() *PPBuffer
	Put(buf *PPBuffer)
}

// sync.Pool based buffer pool
type SyncBufferPool struct {
	pool sync.Pool
	size int
}

func NewSyncBufferPool(size int) BufferPool {
	p := &SyncBufferPool{size: size}
	p.pool.New = func() interface{} {
		buf := new(PPBuffer)
		buf.Grow(size)
		return buf
	}
	return p
}

func (p *SyncBufferPool) Get() *PPBuffer {
	item := p.pool.Get()
	buf, ok := item.(*PPBuffer)
	if !ok {
		buf = new(PPBuffer)
		buf.Grow(p.size)
	}
	return buf
}

func (p *SyncBufferPool) Put(buf *PPBuffer) {
	buf.Reset()
	p.pool.Put(buf)
}

var (
	poolInitOnce sync.Once
	sizedPools   []BufferPool
)

// pools by power-of-two ceiling, 1KB .. 1MB, with a catch-all above
const (
	kMinPooledSize = 1024
	kNumSizedPools = 11
)

func initPools() {
	sizedPools = make([]BufferPool, kNumSizedPools)
	size := kMinPooledSize
	for i := 0; i < kNumSizedPools; i++ {
		sizedPools[i] = NewSyncBufferPool(size)
		size *= 2
	}
}

// GetBufferPool returns a pool whose buffers hold at least size bytes.
func GetBufferPool(size int) BufferPool {
	poolInitOnce.Do(initPools)
	sz := kMinPooledSize
	for i := 0; i < kNumSizedPools; i++ {
		if size <= sz {
			return sizedPools[i]
		}
		sz *= 2
	}
	return sizedPools[kNumSizedPools-1]
}
