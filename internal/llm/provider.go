package llm

import (
	"fmt"

	"github.com/voterprime/catmatch/internal/domain"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

// NewClient creates a keyword suggester for the provider. An empty model
// selects the provider default. The API key is required except for mock.
func NewClient(provider, apiKey, model string) (domain.KeywordSuggester, error) {
	if provider != ProviderMock && apiKey == "" {
		return nil, fmt.Errorf("API key is required for %s provider", provider)
	}

	switch provider {
	case ProviderOpenAI:
		return newClient(provider, NewOpenAIClient(apiKey, model)), nil
	case ProviderAnthropic:
		return newClient(provider, NewAnthropicClient(apiKey, model)), nil
	case ProviderGemini:
		return newClient(provider, NewGeminiClient(apiKey, model)), nil
	case ProviderCerebras:
		return newClient(provider, NewCerebrasClient(apiKey, model)), nil
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, anthropic, gemini, cerebras, mock)", provider)
	}
}
