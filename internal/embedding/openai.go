package embedding

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/voterprime/catmatch/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultOpenAIModel = "text-embedding-3-small"

	// maxBatchInputs is the number of inputs sent per embeddings request.
	maxBatchInputs = 100
	// batchConcurrency bounds in-flight chunk requests.
	batchConcurrency = 4
)

var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

type OpenAIClient struct {
	client *openai.Client
	model  string
	dim    int
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    modelDimensions[model],
	}
}

func (c *OpenAIClient) Model() string {
	return c.model
}

// Dimension returns the known output size for the model, or 0 for models not
// in the table. Callers validate lengths on every response regardless.
func (c *OpenAIClient) Dimension() int {
	return c.dim
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrEncoding)
	}

	vecs, err := c.create(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits texts into chunks of maxBatchInputs and sends the chunks
// concurrently. Output order matches input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: empty input at index %d", domain.ErrEncoding, i)
		}
	}

	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for start := 0; start < len(texts); start += maxBatchInputs {
		start := start
		end := min(start+maxBatchInputs, len(texts))
		g.Go(func() error {
			vecs, err := c.create(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("chunk %d-%d: %w", start, end, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OpenAIClient) create(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create embeddings: %w", domain.ErrEncoding, err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEncoding, len(inputs), len(resp.Data))
	}

	vecs := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(inputs) || vecs[d.Index] != nil {
			return nil, fmt.Errorf("%w: malformed response index %d", domain.ErrEncoding, d.Index)
		}
		if len(d.Embedding) == 0 || (c.dim > 0 && len(d.Embedding) != c.dim) {
			return nil, fmt.Errorf("%w: unexpected embedding length %d", domain.ErrEncoding, len(d.Embedding))
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
