package tui

import (
	"github.com/sjawhar/ghost-rooms/internal/roomsync"
	"github.com/sjawhar/ghost-rooms/internal/session"
)

// joinedMsg is sent once the room is loaded and subscribed.
type joinedMsg struct {
	sync *roomsync.Sync
}

type joinErrorMsg struct {
	Err error
}

// roomChangedMsg signals that the room sync state changed.
type roomChangedMsg struct{}

// recorderStateMsg carries a Recording Controller state change.
type recorderStateMsg struct {
	State session.State
}

// noticeMsg carries the controller's current notice; empty means dismissed.
type noticeMsg struct {
	Notice string
}

// actionDoneMsg reports the end of a background command. Failure is the
// user-facing text to show when Err is set; Info is shown on success.
type actionDoneMsg struct {
	Info    string
	Failure string
	Err     error
}
