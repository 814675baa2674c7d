package provider

import (
	"strings"
	"testing"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantProvider string
		wantModel    string
		wantErr      string
	}{
		{name: "valid", input: "openai/gpt-4o-mini", wantProvider: "openai", wantModel: "gpt-4o-mini"},
		{name: "nested model path", input: "gemini/models/gemini-2.0-flash", wantProvider: "gemini", wantModel: "models/gemini-2.0-flash"},
		{name: "missing slash", input: "openai", wantErr: "invalid model format"},
		{name: "empty provider", input: "/gpt-4o-mini", wantErr: "invalid model format"},
		{name: "empty model", input: "openai/", wantErr: "invalid model format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, modelName, err := ParseModel(tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseModel returned error: %v", err)
			}
			if provider != tt.wantProvider || modelName != tt.wantModel {
				t.Fatalf("expected %s/%s, got %s/%s", tt.wantProvider, tt.wantModel, provider, modelName)
			}
		})
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	client, err := NewClient("unknown", "key", "some-model")
	if err == nil {
		t.Fatalf("expected error for unknown provider, got nil")
	}
	if client != nil {
		t.Fatalf("expected nil client, got %#v", client)
	}
	if !strings.Contains(err.Error(), "unknown LLM provider") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewTranscriberRequiresKey(t *testing.T) {
	if _, err := NewTranscriber("openai", " ", "whisper-1"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestNewTranscriberUnknownProvider(t *testing.T) {
	_, err := NewTranscriber("anthropic", "key", "claude")
	if err == nil || !strings.Contains(err.Error(), "unknown transcription provider") {
		t.Fatalf("expected unknown transcription provider error, got %v", err)
	}
}

func TestAudioFilename(t *testing.T) {
	tests := map[string]string{
		"audio/webm;codecs=opus": "recording.webm",
		"audio/webm":             "recording.webm",
		"audio/mp4":              "recording.m4a",
		"audio/ogg;codecs=opus":  "recording.ogg",
		"":                       "recording.wav",
	}
	for mime, want := range tests {
		if got := (Audio{MIMEType: mime}).Filename(); got != want {
			t.Errorf("Filename(%q) = %q, want %q", mime, got, want)
		}
	}

	if got := (Audio{}).BaseMIMEType(); got != "audio/wav" {
		t.Fatalf("expected audio/wav default, got %q", got)
	}
}

func TestLanguageName(t *testing.T) {
	if got := LanguageName("UR"); got != "Urdu" {
		t.Fatalf("expected Urdu, got %q", got)
	}
	if got := LanguageName(""); got != "Urdu" {
		t.Fatalf("expected Urdu default, got %q", got)
	}
	if got := LanguageName("sw"); got != "sw" {
		t.Fatalf("expected passthrough for unknown code, got %q", got)
	}
}
