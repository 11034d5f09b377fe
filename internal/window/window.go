// Package window provides the bounded temporal buffer of feature vectors for one stream.
package window

import (
	"sync"

	"github.com/ayusman/signbridge/internal/feature"
)

// Buffer is a thread-safe FIFO holding the most recent feature vectors.
// Its length never exceeds its capacity; the oldest vector is evicted first.
type Buffer struct {
	mu       sync.Mutex
	vectors  []feature.Vector
	capacity int
}

// New creates a Buffer holding at most capacity vectors.
// Capacities below 1 are treated as 1.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		vectors:  make([]feature.Vector, 0, capacity),
		capacity: capacity,
	}
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Len returns the number of vectors currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.vectors)
}

// Push appends v, evicting from the front if the buffer is over capacity.
func (b *Buffer) Push(v feature.Vector) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.push(v)
}

// Snapshot returns a copy of the current contents, oldest first.
func (b *Buffer) Snapshot() []feature.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// PushSnapshot appends v and returns the resulting contents as one atomic step.
func (b *Buffer) PushSnapshot(v feature.Vector) []feature.Vector {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.push(v)
	return b.snapshot()
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vectors = b.vectors[:0]
}

func (b *Buffer) push(v feature.Vector) {
	if len(b.vectors) >= b.capacity {
		// Shift left, dropping the oldest entries
		drop := len(b.vectors) - b.capacity + 1
		copy(b.vectors, b.vectors[drop:])
		b.vectors = b.vectors[:len(b.vectors)-drop]
	}
	b.vectors = append(b.vectors, v)
}

func (b *Buffer) snapshot() []feature.Vector {
	out := make([]feature.Vector, len(b.vectors))
	copy(out, b.vectors)
	return out
}
