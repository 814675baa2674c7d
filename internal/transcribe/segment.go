package transcribe

import (
	"fmt"
	"strings"
	"time"
)

// Segment is one transcribed utterance posted to a room. ID is assigned by the
// store and never changes; Timestamp is the creation time in epoch milliseconds.
type Segment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	Timestamp int64  `json:"timestamp"`
}

func (s Segment) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// SummaryLine renders the segment as an `author: text` line.
func (s Segment) SummaryLine() string {
	return fmt.Sprintf("%s: %s", s.Author, strings.TrimSpace(s.Text))
}

func SummaryLines(segments []Segment) []string {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, seg.SummaryLine())
	}
	return lines
}

// FormatExport renders the segment as a transcript block.
func (s Segment) FormatExport() string {
	ts := s.Time().Format("15:04:05")
	return fmt.Sprintf("[%s] %s:\n%s", ts, s.Author, strings.TrimSpace(s.Text))
}

// FormatTranscript assembles the plain-text export of a room. A non-empty
// summary is placed ahead of the chat blocks.
func FormatTranscript(segments []Segment, summary string) string {
	blocks := make([]string, 0, len(segments))
	for _, seg := range segments {
		blocks = append(blocks, seg.FormatExport())
	}
	chat := strings.Join(blocks, "\n\n")

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return chat
	}
	return "--- SUMMARY ---\n" + summary + "\n\n--- CHAT ---\n" + chat
}

// ContainsID reports whether a segment with the given id is present.
func ContainsID(segments []Segment, id string) bool {
	for _, seg := range segments {
		if seg.ID == id {
			return true
		}
	}
	return false
}
