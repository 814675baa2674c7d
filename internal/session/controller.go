package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/ghost-rooms/internal/audio"
	"github.com/sjawhar/ghost-rooms/internal/provider"
)

const readChunkSize = 4096

type Options struct {
	Capture     audio.Capture
	Encoder     Encoder
	Transcriber Transcriber
	Publisher   Publisher
	Sink        EventSink
	Logger      *slog.Logger

	AudioConfig   audio.Config
	Encodings     []string
	RestartGrace  time.Duration
	NoticeTimeout time.Duration
}

// Controller is the recording state machine:
// idle -> recording <-> paused -> processing -> idle, with cancel and restart
// from recording or paused, and idle -> error -> idle when capture fails.
type Controller struct {
	capture     audio.Capture
	encoder     Encoder
	transcriber Transcriber
	publisher   Publisher
	sink        EventSink
	logger      *slog.Logger
	notices     *Notices

	audioCfg  audio.Config
	encodings []string
	grace     time.Duration
	sleep     func(time.Duration)

	mu       sync.Mutex
	state    State
	session  audio.Session
	encoding string
	dropTail bool
	buffer   *ChunkBuffer
	epoch    uint64
	pumpDone chan struct{}
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := opts.RestartGrace
	if grace <= 0 {
		grace = 150 * time.Millisecond
	}

	c := &Controller{
		capture:     opts.Capture,
		encoder:     opts.Encoder,
		transcriber: opts.Transcriber,
		publisher:   opts.Publisher,
		sink:        opts.Sink,
		logger:      logger,
		notices:     NewNotices(opts.NoticeTimeout),
		audioCfg:    opts.AudioConfig,
		encodings:   opts.Encodings,
		grace:       grace,
		sleep:       time.Sleep,
		state:       StateIdle,
		buffer:      NewChunkBuffer(),
	}

	c.notices.OnChange(func(msg string) {
		if c.sink != nil {
			c.sink.NoticeChanged(msg)
		}
	})

	return c
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:    c.state,
		Notice:   c.notices.Current(),
		Encoding: c.encoding,
		Buffered: c.buffer.Len(),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires the microphone and begins a fresh recording. Any previous
// capture is released first. A capture failure is reported as a notice and
// leaves the controller idle; the error is returned for logging only.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateProcessing {
		c.mu.Unlock()
		return ErrBusy
	}
	prev := c.releaseLocked()
	c.state = StateIdle
	epoch := c.epoch
	c.mu.Unlock()

	if prev != nil {
		c.stopSession(prev)
	}

	encoding := audio.PickEncoding(c.encodings, c.encoder.Supports)

	sess, err := c.capture.Start(ctx, c.audioCfg)
	if err != nil {
		c.logger.Warn("microphone unavailable", "error", err)
		c.setState(StateError)
		c.notices.Show(NoticeMicUnavailable)
		c.setState(StateIdle)
		return fmt.Errorf("start capture: %w", err)
	}

	c.mu.Lock()
	if c.epoch != epoch || c.state != StateIdle {
		// Another Start or a Cancel won while the device was opening.
		err := ErrBusy
		if c.state == StateIdle {
			err = ErrCancelled
		}
		c.mu.Unlock()
		c.stopSession(sess)
		return err
	}
	c.epoch++
	c.session = sess
	c.encoding = encoding
	c.dropTail = false
	c.buffer.Reset()
	done := make(chan struct{})
	c.pumpDone = done
	c.state = StateRecording
	epoch = c.epoch
	c.mu.Unlock()

	go c.pump(sess, epoch, done)

	c.logger.Info("recording started", "encoding", encoding, "sample_rate", sess.SampleRate())
	c.emitState(StateRecording)
	return nil
}

// Pause is a no-op unless recording.
func (c *Controller) Pause() {
	c.transition(StateRecording, StatePaused)
}

// Resume is a no-op unless paused.
func (c *Controller) Resume() {
	c.transition(StatePaused, StateRecording)
}

// Cancel stops capture and discards the buffer without producing a payload.
// While idle it only abandons a Start that is still opening the device; in
// other states it is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.epoch++
		c.mu.Unlock()
		return
	}
	if c.state != StateRecording && c.state != StatePaused {
		c.mu.Unlock()
		return
	}
	sess := c.releaseLocked()
	c.state = StateIdle
	c.mu.Unlock()

	c.stopSession(sess)
	c.logger.Info("recording cancelled")
	c.emitState(StateIdle)
}

// Restart discards the current recording and starts a new one after a short
// grace period that lets the device release. It is a no-op unless recording or
// paused.
func (c *Controller) Restart(ctx context.Context) error {
	state := c.State()
	if state != StateRecording && state != StatePaused {
		return nil
	}
	c.Cancel()
	c.sleep(c.grace)
	return c.Start(ctx)
}

// StopAndFinalize ends the recording, waits for the last chunk, and hands the
// payload to the transcriber and then the publisher. The controller always
// returns to idle; failures become notices and are also returned.
func (c *Controller) StopAndFinalize(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		c.mu.Unlock()
		return ErrNotRecording
	}
	// Audio still in flight when stopping from pause was captured while paused.
	c.dropTail = c.state == StatePaused
	c.state = StateProcessing
	sess := c.session
	done := c.pumpDone
	encoding := c.encoding
	c.mu.Unlock()
	c.emitState(StateProcessing)

	c.stopSession(sess)
	<-done

	c.mu.Lock()
	pcm := c.buffer.Flush()
	c.session = nil
	c.pumpDone = nil
	c.mu.Unlock()

	err := c.finalize(ctx, pcm, sess.SampleRate(), encoding)
	c.setState(StateIdle)
	return err
}

func (c *Controller) finalize(ctx context.Context, pcm []byte, sampleRate int, encoding string) error {
	if len(pcm) == 0 {
		c.notices.Show(NoticeEmptyRecording)
		return ErrEmptyRecording
	}

	data, mime, err := c.encoder.Encode(ctx, pcm, sampleRate, encoding)
	if err != nil {
		c.logger.Error("encode recording", "error", err)
		c.notices.Show(NoticeTranscriptionFailed)
		return fmt.Errorf("encode recording: %w", err)
	}

	text, err := c.transcriber.Transcribe(ctx, provider.Audio{Data: data, MIMEType: mime})
	if err != nil {
		c.logger.Error("transcription failed", "bytes", len(data), "mime", mime, "error", err)
		c.notices.Show(NoticeTranscriptionFailed)
		return fmt.Errorf("transcribe: %w", err)
	}

	if err := c.publisher.Publish(ctx, text); err != nil {
		c.logger.Error("publish transcript", "error", err)
		c.notices.Show(NoticeSendFailed)
		return fmt.Errorf("publish: %w", err)
	}

	c.logger.Info("transcript published", "bytes", len(data), "mime", mime)
	return nil
}

// Process runs fn with the controller in processing, for other long-running
// calls such as summaries. It returns ErrBusy unless idle.
func (c *Controller) Process(ctx context.Context, fn func(context.Context) error) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateProcessing
	c.mu.Unlock()
	c.emitState(StateProcessing)

	err := fn(ctx)
	c.setState(StateIdle)
	return err
}

// Notify shows a transient notice through the controller's notice timer.
func (c *Controller) Notify(msg string) {
	c.notices.Show(msg)
}

func (c *Controller) DismissNotice() {
	c.notices.Dismiss()
}

// Close releases any capture without emitting state changes.
func (c *Controller) Close() {
	c.mu.Lock()
	sess := c.releaseLocked()
	c.state = StateIdle
	c.mu.Unlock()
	if sess != nil {
		c.stopSession(sess)
	}
	c.notices.Dismiss()
}

// releaseLocked detaches the current session and invalidates its pump.
func (c *Controller) releaseLocked() audio.Session {
	sess := c.session
	c.session = nil
	c.pumpDone = nil
	c.epoch++
	c.buffer.Reset()
	return sess
}

func (c *Controller) pump(sess audio.Session, epoch uint64, done chan struct{}) {
	defer close(done)

	buf := make([]byte, readChunkSize)
	for {
		n, err := sess.Read(buf)
		if n > 0 {
			c.mu.Lock()
			if c.epoch == epoch && (c.state == StateRecording || (c.state == StateProcessing && !c.dropTail)) {
				c.buffer.Add(buf[:n])
			}
			c.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (c *Controller) stopSession(sess audio.Session) {
	if sess == nil {
		return
	}
	if err := sess.Stop(); err != nil {
		c.logger.Warn("stop capture", "error", err)
	}
}

func (c *Controller) transition(from, to State) {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()
	c.emitState(to)
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.emitState(state)
}

func (c *Controller) emitState(state State) {
	if c.sink != nil {
		c.sink.StateChanged(state)
	}
}
