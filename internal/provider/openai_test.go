package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatCompletionResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 123,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
			"finish_reason": "stop",
		}},
	}
}

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Fatalf("expected model gpt-4o-mini, got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages: %#v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(chatCompletionResponse("  Asha greeted the room.  "))
	}))
	defer server.Close()

	client, err := newOpenAIClient("test-key", "gpt-4o-mini", &clientOptions{baseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("newOpenAIClient failed: %v", err)
	}

	got, err := client.Complete(context.Background(), []Message{{Role: "system", Content: "summarize"}, {Role: "user", Content: "Asha: hello"}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Asha greeted the room." {
		t.Fatalf("expected trimmed response, got %q", got)
	}
}

func TestNewClientOpenAIWithBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); !strings.Contains(auth, "test-key") {
			t.Fatalf("expected auth header to include test-key, got %q", auth)
		}
		_ = json.NewEncoder(w).Encode(chatCompletionResponse("ok"))
	}))
	defer server.Close()

	client, err := NewClient("openai", "test-key", "gpt-4o-mini", WithBaseURL(server.URL+"/v1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	got, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "ping"}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "ok" {
		t.Fatalf("expected response ok, got %q", got)
	}
}

func TestOpenAI_Complete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatCompletionResponse("")
		resp["choices"] = []map[string]any{}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, err := newOpenAIClient("test-key", "gpt-4o-mini", &clientOptions{baseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("newOpenAIClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("expected 'no choices' error, got %v", err)
	}
}

func TestOpenAITranscribeSendsAudioAndLanguage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Fatalf("expected model whisper-1, got %q", got)
		}
		if got := r.FormValue("language"); got != "ur" {
			t.Fatalf("expected language ur, got %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer func() { _ = file.Close() }()
		if header.Filename != "recording.webm" {
			t.Fatalf("expected recording.webm, got %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "fake-opus" {
			t.Fatalf("unexpected audio payload %q", string(data))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": " سلام "})
	}))
	defer server.Close()

	tr, err := NewTranscriber("openai", "test-key", "whisper-1", WithBaseURL(server.URL+"/v1"), WithLanguage("ur"))
	if err != nil {
		t.Fatalf("NewTranscriber failed: %v", err)
	}

	got, err := tr.Transcribe(context.Background(), Audio{Data: []byte("fake-opus"), MIMEType: "audio/webm;codecs=opus"})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "سلام" {
		t.Fatalf("expected trimmed transcript, got %q", got)
	}
}

func TestOpenAITranscribeEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "   "})
	}))
	defer server.Close()

	client, err := newOpenAIClient("test-key", "whisper-1", &clientOptions{baseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("newOpenAIClient failed: %v", err)
	}

	_, err = client.Transcribe(context.Background(), Audio{Data: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "empty transcription") {
		t.Fatalf("expected empty transcription error, got %v", err)
	}
}
