package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const defaultFramesPerBuffer = 1024

// PortAudioCapture opens the default input device through PortAudio, trying
// each candidate sample rate in order until one is accepted.
type PortAudioCapture struct {
	rates           []int
	framesPerBuffer int
}

// NewPortAudioCapture initializes PortAudio. Call Close when done with it.
func NewPortAudioCapture(rates []int) (*PortAudioCapture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &PortAudioCapture{rates: rates, framesPerBuffer: defaultFramesPerBuffer}, nil
}

func (c *PortAudioCapture) Close() error {
	return portaudio.Terminate()
}

func (c *PortAudioCapture) Start(_ context.Context, cfg Config) (Session, error) {
	candidates := c.rates
	if cfg.SampleRate > 0 {
		candidates = append([]int{cfg.SampleRate}, candidates...)
	}

	var lastErr error
	for _, rate := range candidates {
		mic, err := NewMic(rate, c.framesPerBuffer)
		if err != nil {
			lastErr = err
			continue
		}
		if err := mic.Start(); err != nil {
			_ = mic.Close()
			lastErr = err
			continue
		}
		return mic, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no sample rate candidates")
	}
	return nil, fmt.Errorf("open microphone: %w", lastErr)
}

// Mic wraps a PortAudio input stream as a Session.
type Mic struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int

	mu      sync.Mutex
	pending bytes.Buffer
	stopped bool
}

// NewMic opens a PortAudio capture stream with the given sample rate and buffer size (in frames).
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf, sampleRate: sampleRate}, nil
}

func (m *Mic) Start() error { return m.stream.Start() }

func (m *Mic) SampleRate() int { return m.sampleRate }

// Read returns PCM16-LE bytes, blocking on the device for a full buffer when
// nothing is pending.
func (m *Mic) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending.Len() == 0 {
		if m.stopped {
			return 0, io.EOF
		}
		if err := m.stream.Read(); err != nil {
			if m.stopped {
				return 0, io.EOF
			}
			return 0, err
		}
		if err := binary.Write(&m.pending, binary.LittleEndian, m.buf); err != nil {
			return 0, err
		}
	}
	return m.pending.Read(p)
}

func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true
	if err := m.stream.Stop(); err != nil {
		_ = m.stream.Close()
		return fmt.Errorf("stop portaudio stream: %w", err)
	}
	return m.stream.Close()
}

func (m *Mic) Close() error {
	return m.Stop()
}
