package roomsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

const DefaultPollInterval = 2 * time.Second

type Config struct {
	Room         string
	User         string
	PollInterval time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// State is a copy of everything the view renders for a room.
type State struct {
	Room     string
	User     string
	Messages []transcribe.Segment
	Online   []string
	Summary  string
	Clearing bool
}

// Sync keeps a local copy of one room consistent with the store. Three
// writers feed it: fetches (initial load and refetch), push events, and the
// reconciliation poll. Every fetch is tagged with the generation it started
// under and is dropped if a clear has happened since.
type Sync struct {
	store    Store
	room     string
	user     string
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	messages   []transcribe.Segment
	presences  map[string]Presence
	summary    string
	generation uint64
	clearing   bool
	closed     bool

	changes   chan struct{}
	sub       Subscription
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Join loads the room, opens its push channel and starts the reconciliation
// poll. A failed initial fetch or subscription is logged; the poll keeps
// trying to catch up. Background work stops on Close or when ctx is done.
func Join(ctx context.Context, store Store, cfg Config) (*Sync, error) {
	room := strings.TrimSpace(cfg.Room)
	user := strings.TrimSpace(cfg.User)
	if room == "" {
		return nil, errors.New("room is required")
	}
	if user == "" {
		return nil, errors.New("display name is required")
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Sync{
		store:    store,
		room:     room,
		user:     user,
		interval: interval,
		logger:   logger.With("room", room),
		now:      now,
		// Until the first sync arrives the only known member is this client.
		presences: map[string]Presence{"self": {User: user, OnlineAt: now().UTC().Format(time.RFC3339Nano)}},
		changes:   make(chan struct{}, 1),
		cancel:    cancel,
	}

	sub, err := store.Subscribe(ctx, room)
	if err != nil {
		s.logger.Warn("room subscription failed, relying on poll", "error", err)
	} else {
		s.sub = sub
	}

	s.refetch(ctx)

	if s.sub != nil {
		s.wg.Add(1)
		go s.listen(runCtx, s.sub)
	}
	s.wg.Add(1)
	go s.poll(runCtx)

	return s, nil
}

func (s *Sync) Room() string { return s.room }

func (s *Sync) User() string { return s.user }

// Changes signals that the state changed. Signals coalesce; read Snapshot
// after each one.
func (s *Sync) Changes() <-chan struct{} {
	return s.changes
}

func (s *Sync) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]transcribe.Segment, len(s.messages))
	copy(messages, s.messages)
	return State{
		Room:     s.room,
		User:     s.user,
		Messages: messages,
		Online:   onlineNames(s.presences),
		Summary:  s.summary,
		Clearing: s.clearing,
	}
}

// Publish inserts a message authored by this client and merges the stored
// row right away instead of waiting for the push echo.
func (s *Sync) Publish(ctx context.Context, text string) error {
	if s.isClosed() {
		return ErrClosed
	}
	seg, err := s.store.Insert(ctx, s.room, s.user, text)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	s.apply(Inserted{Message: seg})
	return nil
}

// Delete removes one message. A message already gone from the store is
// removed locally without error.
func (s *Sync) Delete(ctx context.Context, id string) error {
	if s.isClosed() {
		return ErrClosed
	}
	if err := s.store.Delete(ctx, s.room, id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	s.apply(Deleted{ID: id})
	return nil
}

// ClearAll deletes every message in the room and drops the summary. While the
// delete is in flight no writer may change the local list, and reads started
// before it are discarded when they land.
func (s *Sync) ClearAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.generation++
	s.clearing = true
	s.messages = nil
	s.summary = ""
	s.mu.Unlock()
	s.notify()

	n, err := s.store.DeleteAll(ctx, s.room)

	s.mu.Lock()
	s.generation++
	s.clearing = false
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.refetch(ctx)
		return 0, fmt.Errorf("clear room: %w", err)
	}
	s.logger.Info("room cleared", "deleted", n)
	return n, nil
}

func (s *Sync) SetSummary(summary string) {
	s.mu.Lock()
	s.summary = strings.TrimSpace(summary)
	s.mu.Unlock()
	s.notify()
}

func (s *Sync) ClearSummary() {
	s.SetSummary("")
}

// Close tears down the push channel and the poll. It is safe to call more
// than once.
func (s *Sync) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.presences = nil
		s.mu.Unlock()

		s.cancel()
		if s.sub != nil {
			if err := s.sub.Close(); err != nil {
				s.logger.Warn("close room subscription", "error", err)
			}
		}
		s.wg.Wait()
	})
	return nil
}

func (s *Sync) listen(ctx context.Context, sub Subscription) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				s.logger.Warn("room subscription ended, relying on poll")
				return
			}
			s.handle(ctx, sub, ev)
		}
	}
}

func (s *Sync) handle(ctx context.Context, sub Subscription, ev Event) {
	switch e := ev.(type) {
	case Ready:
		p := Presence{User: s.user, OnlineAt: s.now().UTC().Format(time.RFC3339Nano)}
		if err := sub.Track(ctx, p); err != nil {
			s.logger.Warn("announce presence", "error", err)
		}
	case Deleted:
		if e.ID == "" {
			s.refetch(ctx)
			return
		}
		s.apply(e)
	default:
		s.apply(ev)
	}
}

func (s *Sync) poll(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refetch(ctx)
		}
	}
}

// refetch reads the full room and applies it unless a clear intervened.
func (s *Sync) refetch(ctx context.Context) {
	gen, ok := s.beginRead()
	if !ok {
		return
	}

	messages, err := s.store.List(ctx, s.room)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("fetch room messages", "error", err)
		}
		return
	}
	s.applyHistory(gen, messages)
}

func (s *Sync) beginRead() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.clearing {
		return 0, false
	}
	return s.generation, true
}

func (s *Sync) applyHistory(gen uint64, messages []transcribe.Segment) {
	s.mu.Lock()
	if s.closed || s.clearing || gen != s.generation {
		s.mu.Unlock()
		return
	}
	changed := !sameContent(s.messages, messages)
	if changed {
		s.messages = append([]transcribe.Segment(nil), messages...)
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// apply handles push events. They are dropped while a clear is in progress.
func (s *Sync) apply(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	changed := false
	switch e := ev.(type) {
	case Inserted:
		if !s.clearing && !transcribe.ContainsID(s.messages, e.Message.ID) {
			s.messages = insertOrdered(s.messages, e.Message)
			changed = true
		}
	case Deleted:
		if !s.clearing {
			s.messages, changed = removeID(s.messages, e.ID)
		}
	case PresenceSync:
		s.presences = make(map[string]Presence, len(e.Presences))
		for id, p := range e.Presences {
			s.presences[id] = p
		}
		changed = true
	case History:
		s.mu.Unlock()
		s.applyHistory(s.currentGeneration(), e.Messages)
		return
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

func (s *Sync) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Sync) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sync) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// insertOrdered appends seg keeping creation-time order.
func insertOrdered(messages []transcribe.Segment, seg transcribe.Segment) []transcribe.Segment {
	i := sort.Search(len(messages), func(i int) bool {
		return messages[i].Timestamp > seg.Timestamp
	})
	messages = append(messages, transcribe.Segment{})
	copy(messages[i+1:], messages[i:])
	messages[i] = seg
	return messages
}

func removeID(messages []transcribe.Segment, id string) ([]transcribe.Segment, bool) {
	for i, seg := range messages {
		if seg.ID == id {
			return append(messages[:i:i], messages[i+1:]...), true
		}
	}
	return messages, false
}

// sameContent compares the encoded lists, so a poll only replaces the local
// copy when the store actually returned something different.
func sameContent(a, b []transcribe.Segment) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ea, errA := json.Marshal(a)
	eb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// onlineNames collapses presence entries to a sorted set of display names.
func onlineNames(presences map[string]Presence) []string {
	seen := make(map[string]struct{}, len(presences))
	names := make([]string, 0, len(presences))
	for _, p := range presences {
		name := strings.TrimSpace(p.User)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
