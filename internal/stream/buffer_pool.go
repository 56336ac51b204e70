package stream

import "sync"

// BufferPool manages a pool of byte buffers to reduce allocations.
// Chunk payloads are taken from the pool by workers and handed back by the
// transport once written.
type BufferPool interface {
	// Get retrieves a buffer with zero length and at least the pool's
	// initial capacity.
	Get() *[]byte

	// Put returns a buffer to the pool. The buffer must not be used
	// afterwards. Passing nil is a no-op.
	Put(buf *[]byte)
}

// bufferPool implements BufferPool using sync.Pool.
//
// Memory Behavior:
//   - Buffers grow past the initial size when a chunk overshoots its goal
//   - Buffers larger than maxPooledSize are dropped instead of pooled
//   - Unused buffers are garbage collected during GC
type bufferPool struct {
	pool          *sync.Pool
	maxPooledSize int
}

// NewBufferPool creates a new buffer pool with the specified initial capacity.
// Buffers that grew beyond four times the initial size are not kept.
func NewBufferPool(initialSize int) BufferPool {
	if initialSize <= 0 {
		initialSize = defaultChunkBytes
	}

	return &bufferPool{
		maxPooledSize: 4 * initialSize,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 0, initialSize)
				return &buf
			},
		},
	}
}

// Get retrieves a buffer from the pool.
// The returned buffer has len=0 but retains its capacity.
func (p *bufferPool) Get() *[]byte {
	buf := p.pool.Get().(*[]byte)

	// Reset length to 0 while preserving capacity
	*buf = (*buf)[:0]

	return buf
}

// Put returns a buffer to the pool for future reuse.
func (p *bufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	if cap(*buf) > p.maxPooledSize {
		return
	}

	p.pool.Put(buf)
}
