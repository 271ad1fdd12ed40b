package llm

import (
	"context"
	"sync"

	"github.com/voterprime/catmatch/internal/domain"
)

// MockClient is a configurable suggester for tests and offline runs.
type MockClient struct {
	mu sync.Mutex

	KeywordsResponse []string
	KeywordsError    error
	DraftResponse    *domain.CategoryDraft
	DraftError       error

	SuggestCalls []string
	DraftCalls   []string
}

func NewMockClient() *MockClient {
	return &MockClient{KeywordsResponse: []string{}}
}

func (m *MockClient) SuggestKeywords(ctx context.Context, c domain.Category, hint string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SuggestCalls = append(m.SuggestCalls, c.Name)
	if m.KeywordsError != nil {
		return nil, m.KeywordsError
	}
	return append([]string(nil), m.KeywordsResponse...), nil
}

// DraftCategory returns DraftResponse, or a draft derived from the
// description when none is set.
func (m *MockClient) DraftCategory(ctx context.Context, description string) (*domain.CategoryDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DraftCalls = append(m.DraftCalls, description)
	if m.DraftError != nil {
		return nil, m.DraftError
	}
	if m.DraftResponse != nil {
		d := *m.DraftResponse
		return &d, nil
	}
	return &domain.CategoryDraft{
		Name:        "Draft Category",
		Type:        domain.CategoryTypeIssue,
		Description: description,
		Keywords:    []string{},
	}, nil
}
