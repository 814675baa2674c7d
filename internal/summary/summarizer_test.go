package summary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sjawhar/ghost-rooms/internal/config"
	"github.com/sjawhar/ghost-rooms/internal/provider"
)

type mockLLMClient struct {
	calls        int
	response     string
	err          error
	lastMessages []provider.Message
}

func (m *mockLLMClient) Complete(_ context.Context, messages []provider.Message) (string, error) {
	m.calls++
	m.lastMessages = append([]provider.Message(nil), messages...)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func testConfig() config.Summarization {
	return config.Summarization{Model: "openai/gpt-4o-mini", SystemPrompt: "condense"}
}

func TestSummarizeSendsLinesInOrder(t *testing.T) {
	client := &mockLLMClient{response: "They said hello."}
	factoryCalls := 0

	s := New(testConfig(), func(providerName, model string) (provider.Client, error) {
		if providerName != "openai" || model != "gpt-4o-mini" {
			t.Fatalf("unexpected provider/model %s/%s", providerName, model)
		}
		factoryCalls++
		return client, nil
	})

	got, err := s.Summarize(context.Background(), []string{"Asha: hello", "Bilal: salaam"})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got != "They said hello." {
		t.Fatalf("unexpected summary %q", got)
	}
	if factoryCalls != 1 || client.calls != 1 {
		t.Fatalf("expected one factory and one llm call, got %d and %d", factoryCalls, client.calls)
	}
	if len(client.lastMessages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(client.lastMessages))
	}
	if client.lastMessages[0].Role != "system" || client.lastMessages[0].Content != "condense" {
		t.Fatalf("unexpected system message: %#v", client.lastMessages[0])
	}
	if client.lastMessages[1].Content != "Asha: hello\nBilal: salaam" {
		t.Fatalf("unexpected user content %q", client.lastMessages[1].Content)
	}
}

func TestSummarizeNoLinesIsNoop(t *testing.T) {
	s := New(testConfig(), func(string, string) (provider.Client, error) {
		t.Fatal("factory should not be called without lines")
		return nil, nil
	})

	got, err := s.Summarize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}

func TestSummarizeDoesNotRetry(t *testing.T) {
	client := &mockLLMClient{err: errors.New("rate limited")}
	s := New(testConfig(), func(string, string) (provider.Client, error) { return client, nil })

	_, err := s.Summarize(context.Background(), []string{"Asha: hello"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected exactly one call, got %d", client.calls)
	}
}

func TestSummarizeInvalidModel(t *testing.T) {
	cfg := testConfig()
	cfg.Model = "no-slash"
	s := New(cfg, func(string, string) (provider.Client, error) {
		t.Fatal("factory should not be called for invalid model")
		return nil, nil
	})

	if _, err := s.Summarize(context.Background(), []string{"Asha: hello"}); err == nil {
		t.Fatal("expected error for invalid model")
	}
}

func TestSummarizeFactoryError(t *testing.T) {
	s := New(testConfig(), func(string, string) (provider.Client, error) {
		return nil, errors.New("no key")
	})

	_, err := s.Summarize(context.Background(), []string{"Asha: hello"})
	if err == nil || !strings.Contains(err.Error(), "create llm client") {
		t.Fatalf("expected factory error, got %v", err)
	}
}
