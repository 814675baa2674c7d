package roomsync

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

type fakeSub struct {
	mu      sync.Mutex
	events  chan Event
	tracked []Presence
	closed  bool
}

func newFakeSub() *fakeSub {
	return &fakeSub{events: make(chan Event, 32)}
}

func (f *fakeSub) Events() <-chan Event { return f.events }

func (f *fakeSub) Track(ctx context.Context, p Presence) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, p)
	return nil
}

func (f *fakeSub) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeSub) send(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.events <- ev
	}
}

func (f *fakeSub) trackedUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]string, 0, len(f.tracked))
	for _, p := range f.tracked {
		users = append(users, p.User)
	}
	return users
}

type fakeStore struct {
	mu        sync.Mutex
	rooms     map[string][]transcribe.Segment
	nextID    int
	clock     int64
	subs      map[string][]*fakeSub
	listHook  func()
	clearHook func()
	clearErr  error
	subErr    error
	inserts   int
	lists     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms: make(map[string][]transcribe.Segment),
		subs:  make(map[string][]*fakeSub),
		clock: 1_700_000_000_000,
	}
}

func (f *fakeStore) seed(room, author, text string) transcribe.Segment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(room, author, text)
}

func (f *fakeStore) insertLocked(room, author, text string) transcribe.Segment {
	f.nextID++
	f.clock++
	seg := transcribe.Segment{ID: strconv.Itoa(f.nextID), Text: text, Author: author, Timestamp: f.clock}
	f.rooms[room] = append(f.rooms[room], seg)
	return seg
}

func (f *fakeStore) List(ctx context.Context, room string) ([]transcribe.Segment, error) {
	f.mu.Lock()
	out := append([]transcribe.Segment(nil), f.rooms[room]...)
	f.lists++
	hook := f.listHook
	f.listHook = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeStore) Insert(ctx context.Context, room, author, text string) (transcribe.Segment, error) {
	f.mu.Lock()
	seg := f.insertLocked(room, author, text)
	f.inserts++
	subs := append([]*fakeSub(nil), f.subs[room]...)
	f.mu.Unlock()

	for _, sub := range subs {
		sub.send(Inserted{Message: seg})
	}
	return seg, nil
}

func (f *fakeStore) Delete(ctx context.Context, room, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, seg := range f.rooms[room] {
		if seg.ID == id {
			f.rooms[room] = append(f.rooms[room][:i], f.rooms[room][i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) DeleteAll(ctx context.Context, room string) (int64, error) {
	f.mu.Lock()
	hook := f.clearHook
	err := f.clearErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.rooms[room]))
	delete(f.rooms, room)
	return n, nil
}

func (f *fakeStore) Subscribe(ctx context.Context, room string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	sub := newFakeSub()
	f.subs[room] = append(f.subs[room], sub)
	return sub, nil
}

func (f *fakeStore) lastSub(room string) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[room]
	return subs[len(subs)-1]
}

func joinRoom(t *testing.T, store *fakeStore, room, user string, poll time.Duration) *Sync {
	t.Helper()
	s, err := Join(context.Background(), store, Config{Room: room, User: user, PollInterval: poll})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

// drain waits until every event queued on sub so far has been handled.
func drain(t *testing.T, s *Sync, sub *fakeSub) {
	t.Helper()
	marker := map[string]Presence{"marker-" + strconv.FormatInt(time.Now().UnixNano(), 10): {User: "zz-marker"}}
	sub.send(PresenceSync{Presences: marker})
	waitFor(t, "event queue to drain", func() bool {
		online := s.Snapshot().Online
		return len(online) == 1 && online[0] == "zz-marker"
	})
}

func countID(messages []transcribe.Segment, id string) int {
	n := 0
	for _, seg := range messages {
		if seg.ID == id {
			n++
		}
	}
	return n
}

func TestJoinValidatesIdentity(t *testing.T) {
	store := newFakeStore()
	if _, err := Join(context.Background(), store, Config{Room: " ", User: "Asha"}); err == nil {
		t.Fatal("expected error for blank room")
	}
	if _, err := Join(context.Background(), store, Config{Room: "1234", User: ""}); err == nil {
		t.Fatal("expected error for blank user")
	}
}

func TestJoinLoadsHistoryAndShowsSelf(t *testing.T) {
	store := newFakeStore()
	store.seed("1234", "Bilal", "first")
	store.seed("1234", "Bilal", "second")
	store.seed("other", "Bilal", "elsewhere")

	s := joinRoom(t, store, "1234", "Asha", time.Hour)
	state := s.Snapshot()

	if len(state.Messages) != 2 || state.Messages[0].Text != "first" || state.Messages[1].Text != "second" {
		t.Fatalf("unexpected history %#v", state.Messages)
	}
	if len(state.Online) != 1 || state.Online[0] != "Asha" {
		t.Fatalf("expected immediate self presence, got %#v", state.Online)
	}
}

func TestReadyAnnouncesPresence(t *testing.T) {
	store := newFakeStore()
	joinRoom(t, store, "1234", "Asha", time.Hour)
	sub := store.lastSub("1234")

	sub.send(Ready{})
	waitFor(t, "presence track", func() bool {
		users := sub.trackedUsers()
		return len(users) == 1 && users[0] == "Asha"
	})
}

func TestPresenceSyncCollapsesNames(t *testing.T) {
	store := newFakeStore()
	s := joinRoom(t, store, "1234", "Asha", time.Hour)
	sub := store.lastSub("1234")

	sub.send(PresenceSync{Presences: map[string]Presence{
		"c1": {User: "Bilal"},
		"c2": {User: "Asha"},
		"c3": {User: "Bilal"},
	}})

	waitFor(t, "presence sync", func() bool {
		online := s.Snapshot().Online
		return len(online) == 2 && online[0] == "Asha" && online[1] == "Bilal"
	})
}

func TestInsertMergeIsIdempotent(t *testing.T) {
	store := newFakeStore()
	s := joinRoom(t, store, "1234", "Asha", 10*time.Millisecond)
	sub := store.lastSub("1234")

	seg := store.seed("1234", "Bilal", "hello")
	sub.send(Inserted{Message: seg})
	sub.send(Inserted{Message: seg})
	drain(t, s, sub)

	waitFor(t, "poll to run", func() bool {
		return countID(s.Snapshot().Messages, seg.ID) == 1
	})
	time.Sleep(30 * time.Millisecond)
	sub.send(Inserted{Message: seg})
	drain(t, s, sub)

	if got := countID(s.Snapshot().Messages, seg.ID); got != 1 {
		t.Fatalf("expected exactly one entry for id %s, got %d", seg.ID, got)
	}
}

func TestInsertKeepsCreationOrder(t *testing.T) {
	store := newFakeStore()
	s := joinRoom(t, store, "1234", "Asha", time.Hour)
	sub := store.lastSub("1234")

	sub.send(Inserted{Message: transcribe.Segment{ID: "b", Text: "later", Timestamp: 20}})
	sub.send(Inserted{Message: transcribe.Segment{ID: "a", Text: "earlier", Timestamp: 10}})
	drain(t, s, sub)

	msgs := s.Snapshot().Messages
	if len(msgs) != 2 || msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Fatalf("expected creation order, got %#v", msgs)
	}
}

func TestPublishMergesImmediatelyAndReachesOtherClients(t *testing.T) {
	store := newFakeStore()
	asha := joinRoom(t, store, "1234", "Asha", time.Hour)
	bilal := joinRoom(t, store, "1234", "Bilal", 10*time.Millisecond)

	if err := asha.Publish(context.Background(), "hello"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	mine := asha.Snapshot().Messages
	if len(mine) != 1 || mine[0].Author != "Asha" || mine[0].Text != "hello" {
		t.Fatalf("expected published segment merged locally, got %#v", mine)
	}

	waitFor(t, "second client to see the segment", func() bool {
		theirs := bilal.Snapshot().Messages
		return len(theirs) == 1 && theirs[0].ID == mine[0].ID
	})
	time.Sleep(40 * time.Millisecond)
	if got := countID(bilal.Snapshot().Messages, mine[0].ID); got != 1 {
		t.Fatalf("expected no duplication on second client, got %d", got)
	}
	if got := countID(asha.Snapshot().Messages, mine[0].ID); got != 1 {
		t.Fatalf("expected push echo not to duplicate, got %d", got)
	}
}

func TestDeleteTargetedAndRefetchFallback(t *testing.T) {
	store := newFakeStore()
	one := store.seed("1234", "Bilal", "one")
	two := store.seed("1234", "Bilal", "two")
	s := joinRoom(t, store, "1234", "Asha", time.Hour)
	sub := store.lastSub("1234")

	if err := s.Delete(context.Background(), one.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if msgs := s.Snapshot().Messages; len(msgs) != 1 || msgs[0].ID != two.ID {
		t.Fatalf("expected targeted removal, got %#v", msgs)
	}

	if err := s.Delete(context.Background(), one.ID); err != nil {
		t.Fatalf("expected repeat delete to succeed, got %v", err)
	}

	if err := store.Delete(context.Background(), "1234", two.ID); err != nil {
		t.Fatalf("store delete failed: %v", err)
	}
	sub.send(Deleted{})
	waitFor(t, "refetch after id-less delete", func() bool {
		return len(s.Snapshot().Messages) == 0
	})
}

func TestClearAllDiscardsInFlightPoll(t *testing.T) {
	store := newFakeStore()
	for _, text := range []string{"a", "b", "c"} {
		store.seed("1234", "Bilal", text)
	}
	s := joinRoom(t, store, "1234", "Asha", time.Hour)
	sub := store.lastSub("1234")
	s.SetSummary("old summary")

	started := make(chan struct{})
	release := make(chan struct{})
	store.mu.Lock()
	store.listHook = func() {
		close(started)
		<-release
	}
	store.mu.Unlock()

	// The refetch reads the pre-clear rows and then stalls.
	sub.send(Deleted{})
	<-started

	n, err := s.ClearAll(context.Background())
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted rows, got %d", n)
	}

	close(release)
	drain(t, s, sub)

	state := s.Snapshot()
	if len(state.Messages) != 0 {
		t.Fatalf("expected list to stay empty, got %#v", state.Messages)
	}
	if state.Summary != "" {
		t.Fatalf("expected summary cleared, got %q", state.Summary)
	}
	if state.Clearing {
		t.Fatal("expected clearing window closed")
	}
}

func TestClearAllSuppressesPushWhileDeleting(t *testing.T) {
	store := newFakeStore()
	store.seed("1234", "Bilal", "a")
	s := joinRoom(t, store, "1234", "Asha", time.Hour)
	sub := store.lastSub("1234")

	inDelete := make(chan struct{})
	release := make(chan struct{})
	store.mu.Lock()
	store.clearHook = func() {
		close(inDelete)
		<-release
	}
	store.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.ClearAll(context.Background())
		done <- err
	}()
	<-inDelete

	sub.send(Inserted{Message: transcribe.Segment{ID: "stale", Text: "late echo", Timestamp: 1}})
	drain(t, s, sub)

	state := s.Snapshot()
	if !state.Clearing {
		t.Fatal("expected clearing window open")
	}
	if len(state.Messages) != 0 {
		t.Fatalf("expected no writer to alter the list while clearing, got %#v", state.Messages)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	fresh := store.seed("1234", "Bilal", "after")
	sub.send(Deleted{})
	waitFor(t, "list to match store after the window", func() bool {
		msgs := s.Snapshot().Messages
		return len(msgs) == 1 && msgs[0].ID == fresh.ID
	})
}

func TestClearAllFailureRestoresList(t *testing.T) {
	store := newFakeStore()
	store.seed("1234", "Bilal", "keep")
	s := joinRoom(t, store, "1234", "Asha", time.Hour)

	store.mu.Lock()
	store.clearErr = errors.New("store unavailable")
	store.mu.Unlock()

	if _, err := s.ClearAll(context.Background()); err == nil {
		t.Fatal("expected ClearAll error")
	}
	if msgs := s.Snapshot().Messages; len(msgs) != 1 {
		t.Fatalf("expected list refetched after failed clear, got %#v", msgs)
	}
}

func TestSubscribeFailureFallsBackToPoll(t *testing.T) {
	store := newFakeStore()
	store.subErr = errors.New("websocket refused")
	s := joinRoom(t, store, "1234", "Asha", 10*time.Millisecond)

	store.seed("1234", "Bilal", "polled")
	waitFor(t, "poll to pick up message", func() bool {
		return len(s.Snapshot().Messages) == 1
	})
}

func (f *fakeStore) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func TestUnchangedPollDoesNotSignal(t *testing.T) {
	store := newFakeStore()
	store.seed("1234", "Bilal", "hello")
	s := joinRoom(t, store, "1234", "Asha", 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	select {
	case <-s.Changes():
	default:
	}

	before := store.listCount()
	select {
	case <-s.Changes():
		t.Fatal("expected no change signal for identical poll results")
	case <-time.After(200 * time.Millisecond):
	}

	if polls := store.listCount() - before; polls < 5 {
		t.Fatalf("expected the poll to keep running, got %d fetches", polls)
	}
	if got := len(s.Snapshot().Messages); got != 1 {
		t.Fatalf("expected list untouched, got %d messages", got)
	}
}

func TestChangesSignalled(t *testing.T) {
	store := newFakeStore()
	s := joinRoom(t, store, "1234", "Asha", time.Hour)

	select {
	case <-s.Changes():
	default:
	}

	s.SetSummary("summary")
	select {
	case <-s.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected change signal")
	}
	if got := s.Snapshot().Summary; got != "summary" {
		t.Fatalf("expected summary stored, got %q", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store := newFakeStore()
	s := joinRoom(t, store, "1234", "Asha", 10*time.Millisecond)
	sub := store.lastSub("1234")

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	sub.mu.Lock()
	closed := sub.closed
	sub.mu.Unlock()
	if !closed {
		t.Fatal("expected subscription closed")
	}

	if err := s.Publish(context.Background(), "late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := s.ClearAll(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from ClearAll, got %v", err)
	}
	if online := s.Snapshot().Online; len(online) != 0 {
		t.Fatalf("expected presence reset on close, got %#v", online)
	}

	store.mu.Lock()
	inserts := store.inserts
	store.mu.Unlock()
	if inserts != 0 {
		t.Fatalf("expected no store insert after close, got %d", inserts)
	}
}
