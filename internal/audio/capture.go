package audio

import (
	"context"
	"io"
)

// Config describes how to open the microphone.
type Config struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// Session is a live capture producing mono PCM16-LE. Stop is safe to call more
// than once; reads after Stop return io.EOF or an error.
type Session interface {
	io.ReadCloser
	Stop() error
	SampleRate() int
}

// Capture opens exclusive microphone sessions.
type Capture interface {
	Start(ctx context.Context, cfg Config) (Session, error)
}
