package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

var deepgramInit sync.Once

type deepgramClient struct {
	rest     *api.Client
	model    string
	language string
}

func newDeepgramClient(apiKey, model string, opts *clientOptions) (*deepgramClient, error) {
	deepgramInit.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})

	cOptions := &interfaces.ClientOptions{}
	if opts.baseURL != "" {
		cOptions.Host = opts.baseURL
	}
	if model == "" || strings.HasPrefix(model, "whisper") {
		model = "nova-2"
	}

	return &deepgramClient{
		rest:     api.New(client.NewREST(apiKey, cOptions)),
		model:    model,
		language: opts.language,
	}, nil
}

func (c *deepgramClient) Transcribe(ctx context.Context, audio Audio) (string, error) {
	tOptions := &interfaces.PreRecordedTranscriptionOptions{
		Model:       c.model,
		Language:    c.language,
		Punctuate:   true,
		SmartFormat: true,
	}

	res, err := c.rest.FromStream(ctx, bytes.NewReader(audio.Data), tOptions)
	if err != nil {
		return "", fmt.Errorf("deepgram transcription: %w", err)
	}

	text, err := deepgramTranscript(res)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("deepgram: empty transcription")
	}
	return text, nil
}

type deepgramResult struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// deepgramTranscript joins the first alternative of every channel. It reads the
// response through its JSON form so absent sections decode as empty.
func deepgramTranscript(res any) (string, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("deepgram: encode response: %w", err)
	}

	var parsed deepgramResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("deepgram: decode response: %w", err)
	}

	var parts []string
	for _, ch := range parsed.Results.Channels {
		if len(ch.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(ch.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
