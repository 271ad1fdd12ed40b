package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voterprime/catmatch/internal/domain"
)

// maxSuggestedKeywords caps how many keywords one suggestion may return.
const maxSuggestedKeywords = 10

// completer sends a single prompt and returns the model's text reply.
type completer interface {
	complete(ctx context.Context, prompt string) (string, error)
}

// Client turns a provider's completions into category suggestions.
type Client struct {
	provider string
	llm      completer
}

func newClient(provider string, c completer) *Client {
	return &Client{provider: provider, llm: c}
}

func (c *Client) Provider() string { return c.provider }

func (c *Client) SuggestKeywords(ctx context.Context, cat domain.Category, hint string) ([]string, error) {
	current := "none"
	if len(cat.Keywords) > 0 {
		current = strings.Join(cat.Keywords, ", ")
	}
	if strings.TrimSpace(hint) == "" {
		hint = "none"
	}
	prompt := fmt.Sprintf(keywordPrompt, cat.Name, cat.Type, cat.Description, current, hint, maxSuggestedKeywords)

	result, err := c.llm.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("suggest keywords: %w", err)
	}
	return parseKeywords(result)
}

func (c *Client) DraftCategory(ctx context.Context, description string) (*domain.CategoryDraft, error) {
	result, err := c.llm.complete(ctx, fmt.Sprintf(draftPrompt, description))
	if err != nil {
		return nil, fmt.Errorf("draft category: %w", err)
	}
	return parseDraft(result, description)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseKeywords(raw string) ([]string, error) {
	raw = stripFences(raw)
	var keywords []string
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil {
		return nil, fmt.Errorf("parse keywords: %w (raw: %s)", err, raw)
	}

	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
		if len(out) == maxSuggestedKeywords {
			break
		}
	}
	return out, nil
}

type draftResponse struct {
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Description       string   `json:"description"`
	Keywords          []string `json:"keywords"`
	PoliticalSpectrum string   `json:"political_spectrum"`
}

func parseDraft(raw, description string) (*domain.CategoryDraft, error) {
	raw = stripFences(raw)
	var resp draftResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parse draft: %w (raw: %s)", err, raw)
	}
	if strings.TrimSpace(resp.Name) == "" {
		return nil, fmt.Errorf("parse draft: missing name (raw: %s)", raw)
	}

	d := &domain.CategoryDraft{
		Name:        strings.TrimSpace(resp.Name),
		Type:        domain.CategoryTypeIssue,
		Description: strings.TrimSpace(resp.Description),
		Keywords:    []string{},
	}
	if domain.ValidCategoryType(resp.Type) {
		d.Type = domain.CategoryType(resp.Type)
	}
	if d.Description == "" {
		d.Description = strings.TrimSpace(description)
	}
	if domain.ValidPoliticalSpectrum(resp.PoliticalSpectrum) {
		d.Metadata.PoliticalSpectrum = domain.PoliticalSpectrum(resp.PoliticalSpectrum)
	}
	for _, kw := range resp.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			d.Keywords = append(d.Keywords, kw)
		}
	}
	return d, nil
}
