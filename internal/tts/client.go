// Package tts fetches spoken audio for prompt texts from the OpenAI speech
// API. The voice webhooks hand the provider URLs into this service, so every
// message the assistant speaks passes through here once.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultEndpoint = "https://api.openai.com/v1/audio/speech"
	defaultModel    = "gpt-4o-mini-tts"
	defaultVoice    = "marin"
)

// Options configures the speech client. Zero values fall back to the public
// endpoint and the default Dutch-capable voice.
type Options struct {
	Endpoint string
	Key      string
	Model    string
	Voice    string
}

// Client renders text to MP3 audio.
type Client struct {
	endpoint string
	key      string
	model    string
	voice    string
	client   *http.Client
}

func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Voice == "" {
		opts.Voice = defaultVoice
	}
	return &Client{
		endpoint: opts.Endpoint,
		key:      opts.Key,
		model:    opts.Model,
		voice:    opts.Voice,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type speechRequest struct {
	Model  string `json:"model"`
	Voice  string `json:"voice"`
	Input  string `json:"input"`
	Format string `json:"format"`
}

// Synthesize returns the MP3 audio for the given text.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.key == "" {
		return nil, errors.New("speech api key not configured")
	}

	payload, err := json.Marshal(speechRequest{
		Model:  c.model,
		Voice:  c.voice,
		Input:  text,
		Format: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("speech api status %d: %s", res.StatusCode, string(body))
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}
