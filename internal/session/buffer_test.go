package session

import (
	"bytes"
	"sync"
	"testing"
)

func TestChunkBufferFlushConcatenatesInOrder(t *testing.T) {
	buf := NewChunkBuffer()
	buf.Add([]byte{1, 2})
	buf.Add(nil)
	buf.Add([]byte{3})

	if buf.Len() != 3 {
		t.Fatalf("expected Len() == 3, got %d", buf.Len())
	}

	got := buf.Flush()
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("unexpected flush %v", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer after flush, got %d", buf.Len())
	}
	if buf.Flush() != nil {
		t.Fatal("expected nil flush on empty buffer")
	}
}

func TestChunkBufferCopiesInput(t *testing.T) {
	buf := NewChunkBuffer()
	chunk := []byte{9, 9}
	buf.Add(chunk)
	chunk[0] = 0

	if got := buf.Flush(); got[0] != 9 {
		t.Fatalf("expected buffer to own its copy, got %v", got)
	}
}

func TestChunkBufferReset(t *testing.T) {
	buf := NewChunkBuffer()
	buf.Add([]byte{1})
	buf.Reset()
	if buf.Flush() != nil {
		t.Fatal("expected nil after reset")
	}
}

func TestChunkBufferConcurrentAdd(t *testing.T) {
	buf := NewChunkBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf.Add([]byte{1, 2, 3, 4})
		}()
	}
	wg.Wait()

	if buf.Len() != 200 {
		t.Fatalf("expected 200 bytes, got %d", buf.Len())
	}
}
