package session

import "sync"

// ChunkBuffer accumulates captured PCM chunks for one recording until the
// recording is finalized.
type ChunkBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Add copies chunk into the buffer.
func (b *ChunkBuffer) Add(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, append([]byte(nil), chunk...))
	b.size += len(chunk)
}

// Flush concatenates every chunk in order and resets the buffer.
// Returns nil if the buffer is empty.
func (b *ChunkBuffer) Flush() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		b.chunks = nil
		return nil
	}
	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	b.chunks = nil
	b.size = 0
	return out
}

func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.size = 0
}

// Len returns the number of buffered bytes.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}
