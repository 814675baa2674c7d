package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Writer saves exported room transcripts as plain-text files.
type Writer struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Save writes content to <dir>/room-<room>-<timestamp>.txt and returns the path.
func (w *Writer) Save(roomID, content string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	path := filepath.Join(w.dir, w.fileName(roomID))
	if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

func (w *Writer) fileName(roomID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, roomID)
	if safe == "" {
		safe = "room"
	}
	return fmt.Sprintf("room-%s-%s.txt", safe, w.now().Format("20060102-150405"))
}

func (w *Writer) Dir() string {
	return w.dir
}
