package canon

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/provara-protocol/provara-core/internal/assert"
)

// Metrics tracks canonicalization buffer reuse. Higher hit rates indicate
// fewer allocations on the hashing hot path.
type Metrics struct {
	BufferHits   uint64
	BufferMisses uint64
}

var globalMetrics Metrics

// GetMetrics returns a snapshot of current buffer pool metrics.
func GetMetrics() Metrics {
	return Metrics{
		BufferHits:   atomic.LoadUint64(&globalMetrics.BufferHits),
		BufferMisses: atomic.LoadUint64(&globalMetrics.BufferMisses),
	}
}

const maxBufferSize = 1024 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		atomic.AddUint64(&globalMetrics.BufferMisses, 1)
		return bytes.NewBuffer(make([]byte, 0, 256))
	},
}

func getBuffer() *bytes.Buffer {
	if err := assert.Check(bufferPool.New != nil, "bufferPool.New must be defined"); err != nil {
		return bytes.NewBuffer(nil)
	}
	atomic.AddUint64(&globalMetrics.BufferHits, 1)
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	if b.Cap() > maxBufferSize {
		return
	}
	b.Reset()
	bufferPool.Put(b)
}
