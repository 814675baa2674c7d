package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sjawhar/ghost-rooms/internal/prefs"
	"github.com/sjawhar/ghost-rooms/internal/roomsync"
	"github.com/sjawhar/ghost-rooms/internal/session"
	"github.com/sjawhar/ghost-rooms/internal/share"
	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

const (
	NoticeSummaryFailed   = "Summarization failed. Please try again."
	NoticeNoSummarizer    = "Summaries are not configured."
	NoticeDeleteFailed    = "Could not delete message. Please try again."
	NoticeClearFailed     = "Could not clear the room. Please try again."
	NoticeShareFailed     = "Could not share. Please try again."
	NoticeNothingToExport = "Nothing to export yet."
	NoticeNoLink          = "No share link available."
	NoticeBusy            = "Finish the current recording first."
)

// joinCmd caches the display name and loads the room.
func joinCmd(deps Deps, name, room string) tea.Cmd {
	return func() tea.Msg {
		if deps.PrefsPath != "" {
			if err := prefs.Save(deps.PrefsPath, prefs.Prefs{DisplayName: name}); err != nil {
				deps.Logger.Warn("save prefs", "error", err)
			}
		}

		s, err := roomsync.Join(deps.Ctx, deps.Store, roomsync.Config{
			Room:         room,
			User:         name,
			PollInterval: deps.PollInterval,
			Logger:       deps.Logger,
		})
		if err != nil {
			return joinErrorMsg{Err: err}
		}
		return joinedMsg{sync: s}
	}
}

// waitForRoom blocks until the room sync reports a change.
func waitForRoom(rs *roomSession) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-rs.sync.Changes():
			return roomChangedMsg{}
		case <-rs.done:
			return nil
		}
	}
}

// waitForRecorder reads the next controller event.
func waitForRecorder(rs *roomSession) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-rs.events:
			return msg
		case <-rs.done:
			return nil
		}
	}
}

// Controller failures are already shown as notices, so the recording commands
// only log.
func startCmd(ctx context.Context, rec Recorder) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Err: rec.Start(ctx)}
	}
}

func restartCmd(ctx context.Context, rec Recorder) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Err: rec.Restart(ctx)}
	}
}

func stopCmd(ctx context.Context, rec Recorder) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{Err: rec.StopAndFinalize(ctx)}
	}
}

func deleteCmd(ctx context.Context, s *roomsync.Sync, id string) tea.Cmd {
	return func() tea.Msg {
		if err := s.Delete(ctx, id); err != nil {
			return actionDoneMsg{Err: err, Failure: NoticeDeleteFailed}
		}
		return actionDoneMsg{}
	}
}

func clearCmd(ctx context.Context, s *roomsync.Sync) tea.Cmd {
	return func() tea.Msg {
		n, err := s.ClearAll(ctx)
		if err != nil {
			return actionDoneMsg{Err: err, Failure: NoticeClearFailed}
		}
		return actionDoneMsg{Info: fmt.Sprintf("Cleared %d messages.", n)}
	}
}

func summarizeCmd(ctx context.Context, rec Recorder, summarizer Summarizer, s *roomsync.Sync, messages []transcribe.Segment) tea.Cmd {
	lines := transcribe.SummaryLines(messages)
	return func() tea.Msg {
		var summary string
		err := rec.Process(ctx, func(ctx context.Context) error {
			out, err := summarizer.Summarize(ctx, lines)
			if err != nil {
				return err
			}
			summary = out
			return nil
		})
		if errors.Is(err, session.ErrBusy) {
			return actionDoneMsg{Err: err, Failure: NoticeBusy}
		}
		if err != nil {
			return actionDoneMsg{Err: err, Failure: NoticeSummaryFailed}
		}
		s.SetSummary(summary)
		return actionDoneMsg{}
	}
}

func shareCmd(ctx context.Context, sharer Sharer, item share.Item) tea.Cmd {
	return func() tea.Msg {
		if sharer == nil {
			return actionDoneMsg{Err: errors.New("no share targets"), Failure: NoticeShareFailed}
		}
		where, err := sharer.Share(ctx, item)
		if err != nil {
			return actionDoneMsg{Err: err, Failure: NoticeShareFailed}
		}
		return actionDoneMsg{Info: where}
	}
}

func exportText(state roomsync.State) string {
	return transcribe.FormatTranscript(state.Messages, state.Summary)
}
