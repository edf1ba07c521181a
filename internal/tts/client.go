// Package tts is a thin HTTP client and proxy for the external text-to-speech
// collaborator. The relay core has no dependency on this package; the two are
// wired together only in the server binary.
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

// ErrUpstreamUnavailable indicates the synthesis service could not be reached
// or reported itself unhealthy.
var ErrUpstreamUnavailable = errors.New("tts upstream unavailable")

// Client talks to the synthesis service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the synthesis service at baseURL.
// Synthesis of long texts is slow, so the request timeout is generous.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

type speakersResponse struct {
	Speakers []string `json:"speakers"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Synthesize asks the upstream to render text with the given speaker voice and
// returns the resulting WAV bytes.
func (c *Client) Synthesize(ctx context.Context, text, speaker string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Speaker: speaker})
	if err != nil {
		return nil, fmt.Errorf("encoding synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/speak", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts upstream returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading synthesized audio: %w", err)
	}
	return audio, nil
}

// Speakers returns the voices the upstream can synthesize with.
func (c *Client) Speakers(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/speakers", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building speakers request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts upstream returned status %d", resp.StatusCode)
	}

	var parsed speakersResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding speakers response: %w", err)
	}
	return parsed.Speakers, nil
}

// Health reports whether the upstream considers itself ready to synthesize.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var parsed healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if parsed.Status != "ok" {
		return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, parsed.Message)
	}
	return nil
}
