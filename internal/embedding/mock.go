package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/voterprime/catmatch/internal/domain"
)

const DefaultMockDimension = 256

// MockClient is a deterministic bag-of-words embedder. Each lowercased token
// is hashed into a bucket and the result is L2 normalised, so texts sharing
// words have positive cosine similarity. Set Err to force failures.
type MockClient struct {
	dim int

	mu         sync.Mutex
	Err        error
	EmbedCalls int
	BatchCalls int
}

func NewMockClient(dim int) *MockClient {
	if dim <= 0 {
		dim = DefaultMockDimension
	}
	return &MockClient{dim: dim}
}

func (c *MockClient) Model() string {
	return fmt.Sprintf("mock-bow-%d", c.dim)
}

func (c *MockClient) Dimension() int {
	return c.dim
}

func (c *MockClient) SetError(err error) {
	c.mu.Lock()
	c.Err = err
	c.mu.Unlock()
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.EmbedCalls++
	err := c.Err
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}
	return c.vector(text)
}

func (c *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.BatchCalls++
	err := c.Err
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEncoding, err)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := c.vector(t)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (c *MockClient) vector(text string) ([]float32, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrEncoding)
	}

	vec := make([]float32, c.dim)
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(c.dim)]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

// Tokenize lowercases text and splits it on anything that is not a letter or
// digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
