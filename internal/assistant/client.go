// Package assistant proxies chat requests to an OpenAI-compatible
// chat-completions API on behalf of the journaling UI.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const systemPrompt = "You are a helpful assistant in a journaling app."

var ErrNoReply = errors.New("assistant returned no choices")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	http  *resty.Client
	model string
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	model := opts.Model
	if model == "" {
		model = "gpt-4"
	}
	http := resty.New().
		SetBaseURL(opts.BaseURL).
		SetAuthToken(opts.APIKey).
		SetTimeout(timeout)
	return &Client{http: http, model: model}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends the conversation prefixed with the journaling system prompt and
// returns the first choice's content.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("messages are required")
	}
	body := completionRequest{
		Model:    c.model,
		Messages: append([]Message{{Role: "system", Content: systemPrompt}}, messages...),
	}
	var out completionResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("assistant: %s (status %d)", apiErr.Error.Message, resp.StatusCode())
		}
		return "", fmt.Errorf("assistant: unexpected status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", ErrNoReply
	}
	return out.Choices[0].Message.Content, nil
}
