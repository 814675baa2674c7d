package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

var (
	ErrNotFound     = errors.New("message not found")
	ErrRoomRequired = errors.New("room id is required")
)

// Room describes a room that has at least one message.
type Room struct {
	ID           string    `json:"id"`
	Messages     int       `json:"messages"`
	LastActivity time.Time `json:"last_activity"`
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "ghost-rooms.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id TEXT NOT NULL,
			text TEXT NOT NULL,
			author TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at, id)"); err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// InsertMessage stores a message and returns it with its assigned id.
func (s *SQLiteStore) InsertMessage(roomID, author, text string) (transcribe.Segment, error) {
	if strings.TrimSpace(roomID) == "" {
		return transcribe.Segment{}, ErrRoomRequired
	}

	seg := transcribe.Segment{
		Text:      strings.TrimSpace(text),
		Author:    strings.TrimSpace(author),
		Timestamp: s.now().UnixMilli(),
	}

	res, err := s.db.Exec(
		`INSERT INTO messages(room_id, text, author, created_at) VALUES(?, ?, ?, ?)`,
		roomID,
		seg.Text,
		seg.Author,
		seg.Timestamp,
	)
	if err != nil {
		return transcribe.Segment{}, fmt.Errorf("insert message in room %s: %w", roomID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return transcribe.Segment{}, fmt.Errorf("insert message last id: %w", err)
	}
	seg.ID = strconv.FormatInt(id, 10)

	return seg, nil
}

// ListMessages returns a room's messages in creation order.
func (s *SQLiteStore) ListMessages(roomID string) ([]transcribe.Segment, error) {
	rows, err := s.db.Query(
		`SELECT id, text, author, created_at
		 FROM messages
		 WHERE room_id = ?
		 ORDER BY created_at ASC, id ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages for room %s: %w", roomID, err)
	}
	defer func() { _ = rows.Close() }()

	segments := make([]transcribe.Segment, 0, 32)
	for rows.Next() {
		var seg transcribe.Segment
		var id int64
		if err := rows.Scan(&id, &seg.Text, &seg.Author, &seg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message for room %s: %w", roomID, err)
		}
		seg.ID = strconv.FormatInt(id, 10)
		segments = append(segments, seg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows for room %s: %w", roomID, err)
	}

	return segments, nil
}

// DeleteMessage removes one message from a room. It returns ErrNotFound when the
// id does not exist in that room.
func (s *SQLiteStore) DeleteMessage(roomID, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.db.Exec(`DELETE FROM messages WHERE room_id = ? AND id = ?`, roomID, n)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete message rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRoomMessages removes every message in a room and reports how many rows went.
func (s *SQLiteStore) DeleteRoomMessages(roomID string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM messages WHERE room_id = ?`, roomID)
	if err != nil {
		return 0, fmt.Errorf("clear room %s: %w", roomID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear room rows affected: %w", err)
	}
	return rows, nil
}

// ListRooms returns rooms with messages, most recently active first.
func (s *SQLiteStore) ListRooms() ([]Room, error) {
	rows, err := s.db.Query(
		`SELECT room_id, COUNT(*), MAX(created_at)
		 FROM messages
		 GROUP BY room_id
		 ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rooms []Room
	for rows.Next() {
		var room Room
		var last int64
		if err := rows.Scan(&room.ID, &room.Messages, &last); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.LastActivity = time.UnixMilli(last).UTC()
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate room rows: %w", err)
	}

	return rooms, nil
}
