// Package llm wraps an OpenAI-compatible chat completion endpoint
// (OpenAI proper, or a local Ollama server in compatibility mode).
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client generates in-character replies for the bot.
type Client struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

func NewClient(baseURL, apiKey, model string, logger *slog.Logger) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

// GenerateReply sends one prompt with an optional system prompt and
// character manifest and returns the model's text. The manifest, when
// present, is appended to the system prompt so the persona travels
// with every request.
func (c *Client) GenerateReply(ctx context.Context, prompt, systemPrompt, manifest string) (string, error) {
	system := systemPrompt
	if manifest != "" {
		if system != "" {
			system += "\n\n"
		}
		system += "Character manifest:\n" + manifest
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.8,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if c.logger != nil {
		c.logger.Debug("llm reply", "model", c.model, "chars", len(reply))
	}
	return reply, nil
}

// Summarize asks the model to compress a prepared summarization
// prompt. Lower temperature keeps the result factual.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
