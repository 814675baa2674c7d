package tui

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sjawhar/ghost-rooms/internal/prefs"
	"github.com/sjawhar/ghost-rooms/internal/roomsync"
	"github.com/sjawhar/ghost-rooms/internal/session"
	"github.com/sjawhar/ghost-rooms/internal/share"
)

// DefaultRoom prefills the join form when no room is given.
const DefaultRoom = "1234"

// Recorder is the part of *session.Controller the view drives.
type Recorder interface {
	Start(ctx context.Context) error
	Pause()
	Resume()
	Cancel()
	Restart(ctx context.Context) error
	StopAndFinalize(ctx context.Context) error
	Process(ctx context.Context, fn func(context.Context) error) error
	Notify(msg string)
	DismissNotice()
	Snapshot() session.Snapshot
	Close()
}

type Summarizer interface {
	Summarize(ctx context.Context, lines []string) (string, error)
}

type Sharer interface {
	Share(ctx context.Context, item share.Item) (string, error)
}

// Deps are the collaborators the view needs. NewRecorder is called on every
// join with the room as the transcript publisher.
type Deps struct {
	Ctx          context.Context
	Store        roomsync.Store
	NewRecorder  func(pub session.Publisher, sink session.EventSink) Recorder
	Summarizer   Summarizer
	Sharer       Sharer
	PrefsPath    string
	PublicURL    string
	Language     string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Options prefill the join form.
type Options struct {
	DisplayName string
	Room        string
}

type mode int

const (
	modeJoin mode = iota
	modeChat
	modeConfirm
)

const (
	fieldName = iota
	fieldRoom
	fieldCount
)

type confirmation struct {
	prompt string
	action func(Model) (Model, tea.Cmd)
}

// roomSession is everything tied to one joined room.
type roomSession struct {
	sync   *roomsync.Sync
	rec    Recorder
	events chan tea.Msg
	done   chan struct{}
	link   string
}

// Model is the root bubbletea model.
type Model struct {
	deps Deps

	mode      mode
	nameInput textinput.Model
	roomInput textinput.Model
	focus     int
	formErr   string
	joining   bool

	room     *roomSession
	view     roomsync.State
	recState session.State
	notice   string
	selected int
	confirm  *confirmation

	width    int
	height   int
	quitting bool
}

func New(deps Deps, opts Options) Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	name := strings.TrimSpace(opts.DisplayName)
	if name == "" && deps.PrefsPath != "" {
		p, err := prefs.Load(deps.PrefsPath)
		if err != nil {
			deps.Logger.Warn("load prefs", "error", err)
		}
		name = p.DisplayName
	}
	room := strings.TrimSpace(opts.Room)
	if room == "" {
		room = DefaultRoom
	}

	ni := textinput.New()
	ni.Placeholder = "Your name"
	ni.CharLimit = 64
	ni.SetValue(name)
	ni.Focus()

	ri := textinput.New()
	ri.Placeholder = "Room id"
	ri.CharLimit = 128
	ri.SetValue(room)

	return Model{
		deps:      deps,
		mode:      modeJoin,
		nameInput: ni,
		roomInput: ri,
		focus:     fieldName,
		recState:  session.StateIdle,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case joinedMsg:
		return m.enterRoom(msg.sync)

	case joinErrorMsg:
		m.joining = false
		m.formErr = "Could not join room: " + msg.Err.Error()
		return m, nil

	case roomChangedMsg:
		if m.room == nil {
			return m, nil
		}
		m.refreshView()
		return m, waitForRoom(m.room)

	case recorderStateMsg:
		if m.room == nil {
			return m, nil
		}
		m.recState = msg.State
		return m, waitForRecorder(m.room)

	case noticeMsg:
		if m.room == nil {
			return m, nil
		}
		m.notice = msg.Notice
		return m, waitForRecorder(m.room)

	case actionDoneMsg:
		if m.room == nil {
			return m, nil
		}
		if msg.Err != nil {
			m.deps.Logger.Warn("action failed", "error", msg.Err)
			if msg.Failure != "" {
				m.room.rec.Notify(msg.Failure)
			}
			return m, nil
		}
		if msg.Info != "" {
			m.room.rec.Notify(msg.Info)
		}
		return m, nil
	}

	if m.mode == modeJoin {
		return m.updateInputs(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		m = m.leave()
		m.quitting = true
		return m, tea.Quit
	}

	switch m.mode {
	case modeJoin:
		return m.handleJoinKey(msg)
	case modeConfirm:
		return m.handleConfirmKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m Model) handleJoinKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyTab, KeyDown:
		m.focus = (m.focus + 1) % fieldCount
		m.focusInputs()
		return m, nil
	case KeyBackTab, KeyUp:
		m.focus = (m.focus - 1 + fieldCount) % fieldCount
		m.focusInputs()
		return m, nil
	case KeyEnter:
		return m.join()
	}
	return m.updateInputs(msg)
}

func (m *Model) focusInputs() {
	if m.focus == fieldName {
		m.nameInput.Focus()
		m.roomInput.Blur()
		return
	}
	m.roomInput.Focus()
	m.nameInput.Blur()
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == fieldName {
		m.nameInput, cmd = m.nameInput.Update(msg)
	} else {
		m.roomInput, cmd = m.roomInput.Update(msg)
	}
	return m, cmd
}

// join validates the form and loads the room in the background.
func (m Model) join() (tea.Model, tea.Cmd) {
	if m.joining {
		return m, nil
	}
	name := strings.TrimSpace(m.nameInput.Value())
	room := strings.TrimSpace(m.roomInput.Value())
	if name == "" || room == "" {
		m.formErr = "Enter a display name and a room."
		return m, nil
	}
	m.formErr = ""
	m.joining = true
	return m, joinCmd(m.deps, name, room)
}

func (m Model) enterRoom(s *roomsync.Sync) (tea.Model, tea.Cmd) {
	m.joining = false
	rs := &roomSession{
		sync:   s,
		events: make(chan tea.Msg, 64),
		done:   make(chan struct{}),
		link:   shareLink(m.deps.PublicURL, s.Room(), m.deps.Logger),
	}
	rs.rec = m.deps.NewRecorder(s, recorderSink{events: rs.events, done: rs.done})

	m.room = rs
	m.mode = modeChat
	m.selected = 0
	m.notice = ""
	m.recState = session.StateIdle
	m.refreshView()

	return m, tea.Batch(waitForRoom(rs), waitForRecorder(rs))
}

// leave tears down the room and returns to the join form without the room id.
func (m Model) leave() Model {
	if m.room == nil {
		return m
	}
	rs := m.room
	m.room = nil
	close(rs.done)
	rs.rec.Close()
	if err := rs.sync.Close(); err != nil {
		m.deps.Logger.Warn("close room", "error", err)
	}

	m.mode = modeJoin
	m.confirm = nil
	m.view = roomsync.State{}
	m.notice = ""
	m.selected = 0
	m.recState = session.StateIdle
	m.roomInput.SetValue("")
	m.focus = fieldRoom
	m.focusInputs()
	return m
}

func (m *Model) refreshView() {
	m.view = m.room.sync.Snapshot()
	if m.selected >= len(m.view.Messages) {
		m.selected = len(m.view.Messages) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rs := m.room
	switch msg.String() {
	case KeyRecord:
		switch m.recState {
		case session.StateIdle:
			return m, startCmd(m.deps.Ctx, rs.rec)
		case session.StateRecording, session.StatePaused:
			return m, restartCmd(m.deps.Ctx, rs.rec)
		}
	case KeyPause:
		switch m.recState {
		case session.StateRecording:
			rs.rec.Pause()
		case session.StatePaused:
			rs.rec.Resume()
		}
	case KeyStop, KeyEnter:
		if m.recState == session.StateRecording || m.recState == session.StatePaused {
			return m, stopCmd(m.deps.Ctx, rs.rec)
		}
	case KeyCancel, KeyEsc:
		if m.notice != "" && m.recState == session.StateIdle {
			rs.rec.DismissNotice()
			return m, nil
		}
		rs.rec.Cancel()
	case KeyUp, KeyK:
		if m.selected > 0 {
			m.selected--
		}
	case KeyDown, KeyJ:
		if m.selected < len(m.view.Messages)-1 {
			m.selected++
		}
	case KeyDelete:
		if len(m.view.Messages) == 0 {
			return m, nil
		}
		target := m.view.Messages[m.selected]
		return m.ask("Delete this message from "+target.Author+"?", func(m Model) (Model, tea.Cmd) {
			return m, deleteCmd(m.deps.Ctx, m.room.sync, target.ID)
		}), nil
	case KeyClearAll:
		if len(m.view.Messages) == 0 {
			return m, nil
		}
		return m.ask("Delete all messages in this room?", func(m Model) (Model, tea.Cmd) {
			return m, clearCmd(m.deps.Ctx, m.room.sync)
		}), nil
	case KeySummarize:
		return m.summarize()
	case KeyDismiss:
		rs.sync.ClearSummary()
	case KeyExport:
		return m.export()
	case KeyShareLink:
		if rs.link == "" {
			rs.rec.Notify(NoticeNoLink)
			return m, nil
		}
		return m, shareCmd(m.deps.Ctx, m.deps.Sharer, share.Item{Room: m.view.Room, Kind: share.KindLink, Content: rs.link})
	case KeyLeave:
		return m.ask("Leave this room?", func(m Model) (Model, tea.Cmd) {
			return m.leave(), nil
		}), nil
	}
	return m, nil
}

func (m Model) ask(prompt string, action func(Model) (Model, tea.Cmd)) Model {
	m.confirm = &confirmation{prompt: prompt, action: action}
	m.mode = modeConfirm
	return m
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyConfirmYes, KeyConfirmYesU, KeyEnter:
		c := m.confirm
		m.confirm = nil
		m.mode = modeChat
		if c == nil {
			return m, nil
		}
		return c.action(m)
	case KeyConfirmNo, KeyConfirmNoU, KeyEsc:
		m.confirm = nil
		m.mode = modeChat
	}
	return m, nil
}

// summarize is a no-op for an empty room; otherwise the summary call runs with
// the recorder showing processing.
func (m Model) summarize() (tea.Model, tea.Cmd) {
	if len(m.view.Messages) == 0 {
		return m, nil
	}
	if m.deps.Summarizer == nil {
		m.room.rec.Notify(NoticeNoSummarizer)
		return m, nil
	}
	return m, summarizeCmd(m.deps.Ctx, m.room.rec, m.deps.Summarizer, m.room.sync, m.view.Messages)
}

func (m Model) export() (tea.Model, tea.Cmd) {
	if len(m.view.Messages) == 0 {
		m.room.rec.Notify(NoticeNothingToExport)
		return m, nil
	}
	item := share.Item{
		Room:    m.view.Room,
		Kind:    share.KindTranscript,
		Content: exportText(m.view),
	}
	return m, shareCmd(m.deps.Ctx, m.deps.Sharer, item)
}

// shareLink builds <public url>/?room=<id>. Failures are logged and yield "".
func shareLink(publicURL, room string, logger *slog.Logger) string {
	if strings.TrimSpace(publicURL) == "" {
		return ""
	}
	u, err := url.Parse(publicURL)
	if err != nil {
		logger.Warn("build share link", "error", err)
		return ""
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()
	return u.String()
}
