package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client against any OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client for the given endpoint.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{client: openai.NewClientWithConfig(config)}
}

// Complete runs one non-streaming chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: 0.7,
		MaxTokens:   8000,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion response")
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream runs one streaming chat completion. Tokens are forwarded in the
// exact order received; the accumulated text is returned after the upstream
// stream signals completion.
func (c *OpenAIClient) Stream(ctx context.Context, model string, messages []Message, onToken func(string) error) (string, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: 0.7,
		MaxTokens:   8000,
		Stream:      true,
	})
	if err != nil {
		return "", fmt.Errorf("opening chat completion stream: %w", err)
	}
	defer stream.Close()

	var full string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full, nil
		}
		if err != nil {
			return full, fmt.Errorf("reading chat completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		token := resp.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full += token
		if err := onToken(token); err != nil {
			return full, err
		}
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
