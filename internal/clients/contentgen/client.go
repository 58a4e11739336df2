// Package contentgen calls an OpenAI-compatible chat completions endpoint.
package contentgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/studypath/studypath/internal/breaker"
	"github.com/studypath/studypath/internal/config"
)

var (
	ErrNotConfigured = errors.New("contentgen: no API key configured")
	ErrEmptyResponse = errors.New("contentgen: response has no content")
)

const systemPrompt = "You are a study coach for university students. Answer with JSON only, no prose and no markdown."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	breaker *breaker.Breaker
}

func New(cfg config.AIConfig, b *breaker.Breaker) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: b,
	}
}

// Generate sends prompt and returns the text of the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	return breaker.Execute(c.breaker, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("building chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("calling chat completions: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return "", fmt.Errorf("chat completions returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		}

		var out chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decoding chat response: %w", err)
		}
		if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
			return "", ErrEmptyResponse
		}
		return out.Choices[0].Message.Content, nil
	})
}
