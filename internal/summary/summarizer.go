package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sjawhar/ghost-rooms/internal/config"
	"github.com/sjawhar/ghost-rooms/internal/provider"
)

type ClientFactory func(providerName, model string) (provider.Client, error)

// Summarizer condenses a room's `author: text` lines into one summary. A failed
// call is returned to the caller once; there are no retries.
type Summarizer struct {
	cfg     config.Summarization
	factory ClientFactory
	logger  *slog.Logger
}

func New(cfg config.Summarization, factory ClientFactory) *Summarizer {
	return &Summarizer{
		cfg:     cfg,
		factory: factory,
		logger:  slog.Default(),
	}
}

// Summarize returns "" with no error when there is nothing to summarize.
func (s *Summarizer) Summarize(ctx context.Context, lines []string) (string, error) {
	transcript := strings.TrimSpace(strings.Join(lines, "\n"))
	if transcript == "" {
		return "", nil
	}

	providerName, model, err := provider.ParseModel(s.cfg.Model)
	if err != nil {
		return "", err
	}

	client, err := s.factory(providerName, model)
	if err != nil {
		return "", fmt.Errorf("create llm client: %w", err)
	}

	messages := []provider.Message{
		{Role: "system", Content: s.cfg.SystemPrompt},
		{Role: "user", Content: transcript},
	}

	result, err := client.Complete(ctx, messages)
	if err != nil {
		s.logger.Warn("summary request failed", "model", s.cfg.Model, "lines", len(lines), "error", err)
		return "", fmt.Errorf("summarize: %w", err)
	}

	s.logger.Info("summary generated", "model", s.cfg.Model, "lines", len(lines))
	return result, nil
}
