// Package llm talks to a local OpenAI-compatible chat completion server
// and streams tokens back via server-sent events.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "http://127.0.0.1:8080"
	defaultModel       = "local"
	defaultTemperature = 0.8

	completionsPath = "/v1/chat/completions"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
}

// Client wraps the chat completion API of a local llama.cpp-style server.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an LLM client using the supplied configuration.
// Generation itself carries no timeout; cancellation comes from ctx.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			BaseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:       strings.TrimSpace(cfg.Model),
			Temperature: cfg.Temperature,
		},
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.Temperature == 0 {
		client.cfg.Temperature = defaultTemperature
	}
	return client
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Stream issues a streaming completion and calls fn once per token. A
// non-nil error from fn aborts the stream and is returned unchanged.
// Malformed SSE lines are skipped, matching how lenient local servers are
// about their own framing.
func (c *Client) Stream(ctx context.Context, messages []Message, fn func(token string) error) error {
	if len(messages) == 0 {
		return errors.New("llm stream: messages required")
	}

	resp, err := c.post(ctx, chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		if err := fn(token); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("llm stream: read events: %w", err)
	}
	return nil
}

// Complete issues a non-streaming completion and returns the full text.
// Used for short one-shot generations like confirmation questions.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("llm complete: messages required")
	}

	resp, err := c.post(ctx, chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm complete: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("llm complete: empty response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// HealthCheck verifies the completion server answers at all.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.Complete(ctx, []Message{
		{Role: "user", Content: "Say ok"},
	})
	return err
}

func (c *Client) post(ctx context.Context, payload chatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm request: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm request: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("llm request: http %d", resp.StatusCode)
	}
	return resp, nil
}
