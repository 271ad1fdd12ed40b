package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/metrics"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient creates an embedding client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider, apiKey, model string) (domain.Embedder, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIClient(apiKey, model), nil

	case ProviderMock:
		return NewMockClient(DefaultMockDimension), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
}

// Instrumented records latency and failures of another Embedder.
type Instrumented struct {
	inner   domain.Embedder
	metrics *metrics.Metrics
}

func WithMetrics(inner domain.Embedder, m *metrics.Metrics) *Instrumented {
	return &Instrumented{inner: inner, metrics: m}
}

func (e *Instrumented) Model() string  { return e.inner.Model() }
func (e *Instrumented) Dimension() int { return e.inner.Dimension() }

func (e *Instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.inner.Embed(ctx, text)
	e.metrics.ObserveEmbedding("embed", time.Since(start), err)
	return vec, err
}

func (e *Instrumented) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := e.inner.EmbedBatch(ctx, texts)
	e.metrics.ObserveEmbedding("embed_batch", time.Since(start), err)
	return vecs, err
}
