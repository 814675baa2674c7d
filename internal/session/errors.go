package session

import "errors"

var (
	// ErrEmptyRecording is returned by StopAndFinalize when nothing was captured.
	ErrEmptyRecording = errors.New("recording was empty")
	// ErrNotRecording is returned by StopAndFinalize outside recording or paused.
	ErrNotRecording = errors.New("not recording")
	// ErrBusy is returned when work is requested while the controller is not idle.
	ErrBusy = errors.New("controller busy")
	// ErrCancelled is returned by Start when Cancel arrived while the device was opening.
	ErrCancelled = errors.New("recording cancelled")
)

// User-facing notices.
const (
	NoticeMicUnavailable      = "Could not access microphone. Check permissions."
	NoticeEmptyRecording      = "Recording was empty. Try again."
	NoticeTranscriptionFailed = "Transcription failed. Please try again."
	NoticeSendFailed          = "Could not send message. Please try again."
)
