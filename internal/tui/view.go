package tui

import (
	"fmt"
	"strings"

	"github.com/sjawhar/ghost-rooms/internal/provider"
	"github.com/sjawhar/ghost-rooms/internal/session"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.mode == modeJoin {
		return m.viewJoin()
	}
	return m.viewChat()
}

func (m Model) viewJoin() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ghost-rooms"))
	b.WriteString("\n\n")
	b.WriteString("Display name\n")
	b.WriteString(m.nameInput.View())
	b.WriteString("\n\nRoom\n")
	b.WriteString(m.roomInput.View())
	b.WriteString("\n\n")
	if m.joining {
		b.WriteString(dimStyle.Render("Joining..."))
		b.WriteString("\n")
	}
	if m.formErr != "" {
		b.WriteString(noticeStyle.Render(m.formErr))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter join • tab switch field • ctrl+c quit"))
	return b.String()
}

func (m Model) viewChat() string {
	var b strings.Builder

	header := fmt.Sprintf("Room %s • %s", m.view.Room, m.view.User)
	if lang := provider.LanguageName(m.deps.Language); lang != "" {
		header += " • " + lang
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Online: " + strings.Join(m.view.Online, ", ")))
	b.WriteString("\n")
	if m.room != nil && m.room.link != "" {
		b.WriteString(dimStyle.Render("Link: " + m.room.link))
		b.WriteString("\n")
	}
	b.WriteString(renderState(m.recState))
	b.WriteString("\n\n")

	if m.view.Summary != "" {
		b.WriteString(summaryStyle.Render("Summary\n" + m.view.Summary))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderMessages())

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}
	if m.mode == modeConfirm && m.confirm != nil {
		b.WriteString("\n")
		b.WriteString(confirmStyle.Render(m.confirm.prompt + " (y/n)"))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.footer()))
	return b.String()
}

func renderState(state session.State) string {
	style, ok := stateStyles[string(state)]
	if !ok {
		style = dimStyle
	}
	label := map[session.State]string{
		session.StateIdle:       "○ idle",
		session.StateRecording:  "● recording",
		session.StatePaused:     "‖ paused",
		session.StateProcessing: "… processing",
		session.StateError:      "✕ error",
	}[state]
	if label == "" {
		label = string(state)
	}
	return style.Render(label)
}

func (m Model) renderMessages() string {
	if m.view.Clearing {
		return dimStyle.Render("Clearing chat...") + "\n"
	}
	msgs := m.view.Messages
	if len(msgs) == 0 {
		return dimStyle.Render("No messages yet. Press r to record.") + "\n"
	}

	start := 0
	if limit := m.height - 12; limit > 0 && len(msgs) > limit {
		start = m.selected - limit/2
		if start < 0 {
			start = 0
		}
		if start > len(msgs)-limit {
			start = len(msgs) - limit
		}
		msgs = msgs[start : start+limit]
	}

	var b strings.Builder
	for i, seg := range msgs {
		line := fmt.Sprintf("[%s] %s: %s", seg.Time().Format("15:04:05"), authorStyle.Render(seg.Author), seg.Text)
		if start+i == m.selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) footer() string {
	if m.mode == modeConfirm {
		return "y confirm • n cancel"
	}
	switch m.recState {
	case session.StateRecording:
		return "s send • p pause • r restart • x cancel"
	case session.StatePaused:
		return "s send • p resume • r restart • x cancel"
	case session.StateProcessing:
		return "processing..."
	}
	return "r record • ↑/↓ select • d delete • C clear • m summarize • D dismiss summary • e export • l share link • q leave"
}
