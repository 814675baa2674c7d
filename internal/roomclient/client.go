package roomclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/ghost-rooms/internal/roomsync"
	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

// Client talks to the store service over its REST API and websocket feed.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(serverURL string, opts ...Option) (*Client, error) {
	serverURL = strings.TrimSpace(serverURL)
	if serverURL == "" {
		return nil, errors.New("server url is required")
	}
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", base.Scheme)
	}

	c := &Client{
		base:   base,
		http:   http.DefaultClient,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) List(ctx context.Context, room string) ([]transcribe.Segment, error) {
	var out []transcribe.Segment
	if err := c.do(ctx, http.MethodGet, messagesPath(room), nil, &out); err != nil {
		return nil, fmt.Errorf("list room %s: %w", room, err)
	}
	return out, nil
}

func (c *Client) Insert(ctx context.Context, room, author, text string) (transcribe.Segment, error) {
	body := map[string]string{"author": author, "text": text}
	var out transcribe.Segment
	if err := c.do(ctx, http.MethodPost, messagesPath(room), body, &out); err != nil {
		return transcribe.Segment{}, fmt.Errorf("insert into room %s: %w", room, err)
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, room, id string) error {
	if err := c.do(ctx, http.MethodDelete, messagesPath(room)+"/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	return nil
}

func (c *Client) DeleteAll(ctx context.Context, room string) (int64, error) {
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, messagesPath(room), nil, &out); err != nil {
		return 0, fmt.Errorf("clear room %s: %w", room, err)
	}
	return out.Deleted, nil
}

func messagesPath(room string) string {
	return "/api/rooms/" + url.PathEscape(room) + "/messages"
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.base.String(), "/") + path
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		return roomsync.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("store returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
