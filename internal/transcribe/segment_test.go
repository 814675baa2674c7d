package transcribe

import (
	"reflect"
	"testing"
	"time"
)

func at(h, m, s int) int64 {
	return time.Date(2026, 2, 26, h, m, s, 0, time.Local).UnixMilli()
}

func TestSummaryLines(t *testing.T) {
	segments := []Segment{
		{ID: "1", Author: "Asha", Text: " hello ", Timestamp: at(10, 0, 0)},
		{ID: "2", Author: "Bilal", Text: "salaam", Timestamp: at(10, 0, 5)},
	}

	got := SummaryLines(segments)
	want := []string{"Asha: hello", "Bilal: salaam"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFormatExport(t *testing.T) {
	seg := Segment{ID: "7", Author: "Asha", Text: "Hello world.", Timestamp: at(10, 32, 15)}
	got := seg.FormatExport()
	want := "[10:32:15] Asha:\nHello world."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatTranscriptWithoutSummary(t *testing.T) {
	segments := []Segment{
		{ID: "1", Author: "Asha", Text: "first", Timestamp: at(9, 0, 0)},
		{ID: "2", Author: "Bilal", Text: "second", Timestamp: at(9, 0, 1)},
	}

	got := FormatTranscript(segments, "  ")
	want := "[09:00:00] Asha:\nfirst\n\n[09:00:01] Bilal:\nsecond"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatTranscriptWithSummary(t *testing.T) {
	segments := []Segment{{ID: "1", Author: "Asha", Text: "first", Timestamp: at(9, 0, 0)}}

	got := FormatTranscript(segments, "They met.")
	want := "--- SUMMARY ---\nThey met.\n\n--- CHAT ---\n[09:00:00] Asha:\nfirst"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestContainsID(t *testing.T) {
	segments := []Segment{{ID: "1"}, {ID: "2"}}
	if !ContainsID(segments, "2") {
		t.Fatal("expected id 2 to be found")
	}
	if ContainsID(segments, "3") {
		t.Fatal("did not expect id 3 to be found")
	}
}
