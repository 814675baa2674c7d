package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sjawhar/ghost-rooms/internal/session"
)

// recorderSink forwards controller events into the bubbletea loop.
type recorderSink struct {
	events chan tea.Msg
	done   chan struct{}
}

func (s recorderSink) StateChanged(state session.State) {
	s.send(recorderStateMsg{State: state})
}

func (s recorderSink) NoticeChanged(notice string) {
	s.send(noticeMsg{Notice: notice})
}

func (s recorderSink) send(msg tea.Msg) {
	select {
	case s.events <- msg:
	case <-s.done:
	}
}
