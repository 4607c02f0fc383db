// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Role is the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn sent to the chat model
type Message struct {
	Role    Role
	Content string
}

// Client talks to an OpenAI-compatible chat completions endpoint
type Client struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewClient creates a chat client. An empty API key is reported as
// ErrUnauthorized so callers can offer to reconfigure.
func NewClient(apiKey, baseURL, model string, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("chat client: %w", ErrUnauthorized)
	}
	if model == "" {
		return nil, fmt.Errorf("chat client: model name is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &Client{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Model returns the chat model name
func (c *Client) Model() string {
	return c.model
}

// Complete returns the full reply in one response
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", ClassifyError(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends the reply to onToken as it arrives and returns the
// concatenated text.
func (c *Client) Stream(ctx context.Context, messages []Message, onToken func(string)) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages))
	defer stream.Close()

	var answer strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		answer.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}
	if err := stream.Err(); err != nil {
		return answer.String(), fmt.Errorf("chat stream failed: %w", ClassifyError(err))
	}
	return answer.String(), nil
}

func (c *Client) params(messages []Message) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    msgs,
		Temperature: openai.Float(c.temperature),
	}
}
