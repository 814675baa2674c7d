package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/sjawhar/ghost-rooms/internal/config"
	"github.com/sjawhar/ghost-rooms/internal/provider"
	"github.com/sjawhar/ghost-rooms/internal/share"
)

func TestRoomFromLink(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8080/?room=1234":    "1234",
		"https://rooms.example.com/?room=abc": "abc",
		"https://rooms.example.com/":          "",
		"://bad":                              "",
	}
	for link, want := range cases {
		if got := roomFromLink(link); got != want {
			t.Fatalf("roomFromLink(%q) = %q, want %q", link, got, want)
		}
	}
}

func TestShareTargetsFollowsConfiguredOrder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Share{
		Targets:   []string{"clipboard", "gdrive", "bogus", "file"},
		ExportDir: t.TempDir(),
	}

	targets := shareTargets(context.Background(), cfg, &bytes.Buffer{}, logger)
	if len(targets) != 2 {
		t.Fatalf("expected gdrive and unknown targets to be skipped, got %d targets", len(targets))
	}
	if targets[0].Name() != "clipboard" || targets[1].Name() != "file" {
		t.Fatalf("unexpected order %q, %q", targets[0].Name(), targets[1].Name())
	}
	if _, ok := targets[1].(share.FileTarget); !ok {
		t.Fatalf("expected file target, got %T", targets[1])
	}
}

func TestUnavailableTranscriberReturnsCause(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	_, err := unavailableTranscriber{err: cause}.Transcribe(context.Background(), provider.Audio{})
	if err != cause {
		t.Fatalf("expected %v, got %v", cause, err)
	}
}
