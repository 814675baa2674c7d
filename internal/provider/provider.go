package provider

import (
	"context"
	"fmt"
	"strings"
)

type Message struct {
	Role    string
	Content string
}

// Client completes a chat conversation.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Audio is one finished recording tagged with its container MIME type.
type Audio struct {
	Data     []byte
	MIMEType string
}

// BaseMIMEType strips codec parameters, e.g. "audio/webm;codecs=opus" -> "audio/webm".
func (a Audio) BaseMIMEType() string {
	base, _, _ := strings.Cut(a.MIMEType, ";")
	base = strings.TrimSpace(base)
	if base == "" {
		return "audio/wav"
	}
	return base
}

// Filename returns a name whose extension matches the container, which upload
// APIs use to detect the format.
func (a Audio) Filename() string {
	switch a.BaseMIMEType() {
	case "audio/webm":
		return "recording.webm"
	case "audio/mp4":
		return "recording.m4a"
	case "audio/ogg":
		return "recording.ogg"
	default:
		return "recording.wav"
	}
}

// Transcriber turns a recording into text in the configured target language.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL  string
	language string
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithLanguage sets the target language (ISO-639-1) for transcription.
func WithLanguage(lang string) Option {
	return func(o *clientOptions) {
		o.language = lang
	}
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

func NewTranscriber(provider, apiKey, model string, opts ...Option) (Transcriber, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("no API key for transcription provider %q", provider)
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	case "deepgram":
		return newDeepgramClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q: supported providers are openai, gemini, deepgram", provider)
	}
}

var languageNames = map[string]string{
	"ur": "Urdu",
	"en": "English",
	"hi": "Hindi",
	"ar": "Arabic",
	"es": "Spanish",
	"fr": "French",
}

// LanguageName maps a language code to the name used in prompts.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	if code == "" {
		return "Urdu"
	}
	return code
}
