package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
)

type Kind string

const (
	KindTranscript Kind = "transcript"
	KindLink       Kind = "link"
)

// Item is something the user asked to share out of a room.
type Item struct {
	Room    string
	Kind    Kind
	Content string
}

// Target is one way of getting an item off the machine. Share returns a short
// description of where the item went.
type Target interface {
	Name() string
	Accepts(kind Kind) bool
	Share(ctx context.Context, item Item) (string, error)
}

// Sharer tries its targets in order and stops at the first that succeeds.
type Sharer struct {
	targets []Target
	logger  *slog.Logger
}

func New(logger *slog.Logger, targets ...Target) *Sharer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sharer{targets: targets, logger: logger}
}

func (s *Sharer) Share(ctx context.Context, item Item) (string, error) {
	if strings.TrimSpace(item.Content) == "" {
		return "", errors.New("nothing to share")
	}

	var errs []error
	for _, target := range s.targets {
		if !target.Accepts(item.Kind) {
			continue
		}
		where, err := target.Share(ctx, item)
		if err == nil {
			s.logger.Info("shared", "target", target.Name(), "kind", item.Kind, "room", item.Room)
			return where, nil
		}
		s.logger.Warn("share target failed", "target", target.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", target.Name(), err))
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no share target accepts %s", item.Kind)
	}
	return "", errors.Join(errs...)
}

// Uploader is satisfied by *gdrive.Uploader.
type Uploader interface {
	Upload(ctx context.Context, name, content string) (string, error)
}

type DriveTarget struct {
	Uploader Uploader
}

func (DriveTarget) Name() string { return "gdrive" }

func (DriveTarget) Accepts(kind Kind) bool { return kind == KindTranscript }

func (d DriveTarget) Share(ctx context.Context, item Item) (string, error) {
	id, err := d.Uploader.Upload(ctx, "ghost-rooms-"+item.Room, item.Content)
	if err != nil {
		return "", err
	}
	return "Saved to Google Drive (" + id + ")", nil
}

// Saver is satisfied by *storage.Writer.
type Saver interface {
	Save(roomID, content string) (string, error)
}

type FileTarget struct {
	Saver Saver
}

func (FileTarget) Name() string { return "file" }

func (FileTarget) Accepts(kind Kind) bool { return kind == KindTranscript }

func (f FileTarget) Share(_ context.Context, item Item) (string, error) {
	path, err := f.Saver.Save(item.Room, item.Content)
	if err != nil {
		return "", err
	}
	return "Saved to " + path, nil
}

// ClipboardTarget copies through the terminal with an OSC 52 escape sequence.
type ClipboardTarget struct {
	Out io.Writer
}

func (ClipboardTarget) Name() string { return "clipboard" }

func (ClipboardTarget) Accepts(Kind) bool { return true }

func (c ClipboardTarget) Share(_ context.Context, item Item) (string, error) {
	if c.Out == nil {
		return "", errors.New("no terminal to copy through")
	}
	if _, err := osc52.New(item.Content).WriteTo(c.Out); err != nil {
		return "", fmt.Errorf("write clipboard sequence: %w", err)
	}
	if item.Kind == KindLink {
		return "Link copied to clipboard", nil
	}
	return "Copied to clipboard", nil
}
