package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sjawhar/ghost-rooms/internal/audio"
	"github.com/sjawhar/ghost-rooms/internal/config"
	"github.com/sjawhar/ghost-rooms/internal/gdrive"
	"github.com/sjawhar/ghost-rooms/internal/mcpserver"
	"github.com/sjawhar/ghost-rooms/internal/provider"
	"github.com/sjawhar/ghost-rooms/internal/roomclient"
	"github.com/sjawhar/ghost-rooms/internal/server"
	"github.com/sjawhar/ghost-rooms/internal/session"
	"github.com/sjawhar/ghost-rooms/internal/share"
	"github.com/sjawhar/ghost-rooms/internal/storage"
	"github.com/sjawhar/ghost-rooms/internal/summary"
	"github.com/sjawhar/ghost-rooms/internal/tui"
)

//go:embed static/*
var staticFiles embed.FS

var version = "dev"

const usage = `usage: ghost-rooms <command> [flags]

commands:
  serve   run the messages store service
  join    open the terminal chat client
  mcp     expose rooms to MCP clients over stdio
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "join":
		err = runJoin(os.Args[2:])
	case "mcp":
		err = runMCP(os.Args[2:])
	case "version":
		fmt.Println(version)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("ghost-rooms %s: %v", os.Args[1], err)
	}
}

func loadConfig(path string) (config.Config, []string, error) {
	cfg, warnings, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}
	return cfg, warnings, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			log.Println("ghost-rooms: shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sig)
	}()
	return ctx, cancel
}

func runServe(args []string) error {
	fset := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fset.String("config", "config.yaml", "path to the YAML config file")
	addr := fset.String("addr", "", "listen address, overrides server.addr")
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg, warnings, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	store, err := storage.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("static assets init failed: %w", err)
	}

	hub := server.NewHub()
	handler, err := server.Handler(assets, hub, store, server.Hooks{
		Warnings: func() []string { return warnings },
	})
	if err != nil {
		return fmt.Errorf("build http handler failed: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	log.Printf("ghost-rooms: links open on %s", cfg.Server.PublicURL)
	return server.Serve(ctx, cfg.Server.Addr, handler)
}

func runMCP(args []string) error {
	fset := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fset.String("config", "config.yaml", "path to the YAML config file")
	if err := fset.Parse(args); err != nil {
		return err
	}

	// stdout carries the protocol.
	log.SetOutput(os.Stderr)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}
	defer func() { _ = store.Close() }()

	return mcpserver.ServeStdio(store, version)
}

func runJoin(args []string) error {
	fset := flag.NewFlagSet("join", flag.ExitOnError)
	configPath := fset.String("config", "config.yaml", "path to the YAML config file")
	name := fset.String("name", "", "display name, overrides the saved one")
	room := fset.String("room", "", "room id to prefill")
	link := fset.String("link", "", "shared room link; its room parameter prefills the room id")
	serverURL := fset.String("server", "", "store service URL, overrides client.server_url")
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *serverURL != "" {
		cfg.Client.ServerURL = *serverURL
	}
	if *room == "" && *link != "" {
		*room = roomFromLink(*link)
	}

	logFile, err := openLog(cfg.Client.LogPath)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()
	log.SetOutput(logFile)
	logger := slog.New(slog.NewTextHandler(logFile, nil))
	slog.SetDefault(logger)

	ctx, cancel := signalContext()
	defer cancel()

	client, err := roomclient.New(cfg.Client.ServerURL)
	if err != nil {
		return err
	}

	transcriber, err := provider.NewTranscriber(
		cfg.Transcription.Provider,
		cfg.APIKeyFor(cfg.Transcription.Provider),
		cfg.Transcription.Model,
		provider.WithLanguage(cfg.Transcription.Language),
	)
	if err != nil {
		logger.Warn("transcription unavailable", "provider", cfg.Transcription.Provider, "error", err)
		transcriber = unavailableTranscriber{err: err}
	}

	summarizer := summary.New(cfg.Summarization, func(providerName, model string) (provider.Client, error) {
		return provider.NewClient(providerName, cfg.APIKeyFor(providerName), model)
	})

	capture, closeCapture, err := newCapture(cfg.Audio, cfg.SampleRateCandidates())
	if err != nil {
		return err
	}
	defer closeCapture()
	encoder := audio.NewEncoder(cfg.Audio.FFmpegCommand)

	sharer := share.New(logger, shareTargets(ctx, cfg.Share, os.Stderr, logger)...)

	newRecorder := func(pub session.Publisher, sink session.EventSink) tui.Recorder {
		return session.NewController(session.Options{
			Capture:     capture,
			Encoder:     encoder,
			Transcriber: transcriber,
			Publisher:   pub,
			Sink:        sink,
			Logger:      logger,
			AudioConfig: audio.Config{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    1,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Encodings:     cfg.Audio.Encodings,
			RestartGrace:  cfg.ParsedRestartGrace(),
			NoticeTimeout: cfg.ParsedNoticeTimeout(),
		})
	}

	model := tui.New(tui.Deps{
		Ctx:          ctx,
		Store:        client,
		NewRecorder:  newRecorder,
		Summarizer:   summarizer,
		Sharer:       sharer,
		PrefsPath:    cfg.Client.PrefsPath,
		PublicURL:    cfg.Server.PublicURL,
		Language:     cfg.Transcription.Language,
		PollInterval: cfg.ParsedPollInterval(),
		Logger:       logger,
	}, tui.Options{DisplayName: *name, Room: *room})

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func openLog(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// roomFromLink pulls the room id out of a shared link, or returns "" when the
// link has none.
func roomFromLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get("room"))
}

func newCapture(cfg config.Audio, rates []int) (audio.Capture, func(), error) {
	if cfg.Backend == "portaudio" {
		pa, err := audio.NewPortAudioCapture(rates)
		if err != nil {
			return nil, nil, fmt.Errorf("portaudio init failed: %w", err)
		}
		return pa, func() { _ = pa.Close() }, nil
	}
	return audio.NewFFmpegCapture(cfg.FFmpegCommand), func() {}, nil
}

// shareTargets builds the share chain in configured order. A target that
// cannot be set up is skipped with a warning.
func shareTargets(ctx context.Context, cfg config.Share, term io.Writer, logger *slog.Logger) []share.Target {
	var targets []share.Target
	for _, name := range cfg.Targets {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "gdrive":
			if cfg.GDriveFolderID == "" {
				logger.Info("gdrive share disabled: no folder configured")
				continue
			}
			up, err := gdrive.NewUploader(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
			if err != nil {
				logger.Warn("gdrive share disabled", "error", err)
				continue
			}
			targets = append(targets, share.DriveTarget{Uploader: up})
		case "file":
			targets = append(targets, share.FileTarget{Saver: storage.NewWriter(cfg.ExportDir)})
		case "clipboard":
			targets = append(targets, share.ClipboardTarget{Out: term})
		default:
			logger.Warn("unknown share target", "target", name)
		}
	}
	return targets
}

type unavailableTranscriber struct {
	err error
}

func (u unavailableTranscriber) Transcribe(context.Context, provider.Audio) (string, error) {
	return "", u.err
}
