package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultCerebrasModel = "llama-3.3-70b"

	cerebrasBaseURL = "https://api.cerebras.ai/v1"

	completionTemperature = 0.2
)

// OpenAIClient completes prompts with any OpenAI compatible chat API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return newOpenAICompatible(openai.DefaultConfig(apiKey), model, DefaultOpenAIModel)
}

// NewCerebrasClient talks to Cerebras through its OpenAI compatible endpoint.
func NewCerebrasClient(apiKey, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = cerebrasBaseURL
	return newOpenAICompatible(cfg, model, DefaultCerebrasModel)
}

func newOpenAICompatible(cfg openai.ClientConfig, model, fallback string) *OpenAIClient {
	if model == "" {
		model = fallback
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: completionTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
