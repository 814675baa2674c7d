package session

import (
	"context"

	"github.com/sjawhar/ghost-rooms/internal/provider"
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StatePaused     State = "paused"
	StateProcessing State = "processing"
	StateError      State = "error"
)

// Encoder converts raw PCM into one of the preferred encodings.
type Encoder interface {
	Supports(mime string) bool
	Encode(ctx context.Context, pcm []byte, sampleRate int, mime string) ([]byte, string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio provider.Audio) (string, error)
}

// Publisher posts a finished transcript to the current room.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

// EventSink receives controller state changes and notice updates. An empty
// notice means the previous one was dismissed.
type EventSink interface {
	StateChanged(state State)
	NoticeChanged(notice string)
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State    State
	Notice   string
	Encoding string
	Buffered int
}
