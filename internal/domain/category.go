package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type CategoryType string

const (
	CategoryTypeIssue              CategoryType = "issue"
	CategoryTypePolicy             CategoryType = "policy"
	CategoryTypeCandidateAttribute CategoryType = "candidate_attribute"
	CategoryTypeAttribute          CategoryType = "attribute"
)

func ValidCategoryType(t string) bool {
	switch CategoryType(t) {
	case CategoryTypeIssue, CategoryTypePolicy, CategoryTypeCandidateAttribute, CategoryTypeAttribute:
		return true
	}
	return false
}

// ParseCategoryTypes validates a list of raw type names. An empty list means
// "no filter" and yields nil.
func ParseCategoryTypes(raw []string) ([]CategoryType, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	types := make([]CategoryType, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if !ValidCategoryType(r) {
			return nil, fmt.Errorf("invalid category type: %q", r)
		}
		types = append(types, CategoryType(r))
	}
	return types, nil
}

type PoliticalSpectrum string

const (
	SpectrumProgressive  PoliticalSpectrum = "progressive"
	SpectrumConservative PoliticalSpectrum = "conservative"
	SpectrumBipartisan   PoliticalSpectrum = "bipartisan"
	SpectrumPolarized    PoliticalSpectrum = "polarized"
)

// ValidPoliticalSpectrum reports whether s is a known spectrum. The empty
// value is allowed because most categories do not carry one.
func ValidPoliticalSpectrum(s string) bool {
	switch PoliticalSpectrum(s) {
	case "", SpectrumProgressive, SpectrumConservative, SpectrumBipartisan, SpectrumPolarized:
		return true
	}
	return false
}

type TransformType string

const (
	TransformSplit TransformType = "split"
	TransformMerge TransformType = "merge"
)

// Provenance records where an admin-created category came from.
type Provenance struct {
	Source    string        `json:"source,omitempty"`
	Transform TransformType `json:"transform,omitempty"`
	SourceIDs []int         `json:"source_ids,omitempty"`
	Note      string        `json:"note,omitempty"`
}

// CategoryMetadata is the typed core of a category's metadata. Keys that are
// not part of the core survive a JSON round trip through Extra.
type CategoryMetadata struct {
	PoliticalSpectrum PoliticalSpectrum `json:"political_spectrum,omitempty"`
	PolicyAreas       []string          `json:"policy_areas,omitempty"`
	PriorityLevel     string            `json:"priority_level,omitempty"`
	Provenance        *Provenance       `json:"provenance,omitempty"`
	Extra             map[string]any    `json:"-"`
}

var metadataCoreKeys = map[string]bool{
	"political_spectrum": true,
	"policy_areas":       true,
	"priority_level":     true,
	"provenance":         true,
}

func (m CategoryMetadata) MarshalJSON() ([]byte, error) {
	type core CategoryMetadata
	raw, err := json.Marshal(core(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return raw, nil
	}

	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		if !metadataCoreKeys[k] {
			out[k] = v
		}
	}
	var typed map[string]any
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		out[k] = v
	}
	return json.Marshal(out)
}

func (m *CategoryMetadata) UnmarshalJSON(data []byte) error {
	type core CategoryMetadata
	var c core
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*m = CategoryMetadata(c)
	for k, v := range all {
		if metadataCoreKeys[k] {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
	return nil
}

// MetadataFromMap converts a loosely typed map (from YAML or a request body)
// into CategoryMetadata.
func MetadataFromMap(raw map[string]any) (CategoryMetadata, error) {
	var m CategoryMetadata
	if len(raw) == 0 {
		return m, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return m, fmt.Errorf("encode metadata: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode metadata: %w", err)
	}
	if !ValidPoliticalSpectrum(string(m.PoliticalSpectrum)) {
		return m, fmt.Errorf("invalid political_spectrum: %q", m.PoliticalSpectrum)
	}
	return m, nil
}

// WithPatch overlays patch onto the metadata key by key. A null value
// removes the key. Provenance is owned by split and merge and cannot be
// patched.
func (m CategoryMetadata) WithPatch(patch map[string]any) (CategoryMetadata, error) {
	if _, ok := patch["provenance"]; ok {
		return m, errors.New("provenance cannot be changed")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return m, fmt.Errorf("encode metadata: %w", err)
	}
	merged := map[string]any{}
	if err := json.Unmarshal(b, &merged); err != nil {
		return m, fmt.Errorf("decode metadata: %w", err)
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	out, err := MetadataFromMap(merged)
	if err != nil {
		return m, err
	}
	out.Provenance = m.Provenance
	return out, nil
}

type Category struct {
	ID              int              `json:"id"`
	Name            string           `json:"name"`
	Type            CategoryType     `json:"type"`
	Description     string           `json:"description"`
	Keywords        []string         `json:"keywords"`
	SuccessCount    int              `json:"success_count"`
	TotalUsageCount int              `json:"total_usage_count"`
	Metadata        CategoryMetadata `json:"metadata"`
	IsActive        bool             `json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CreatedBy       string           `json:"created_by,omitempty"`
	UpdatedBy       string           `json:"updated_by,omitempty"`
}

// Validate checks the fields every stored category must carry.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is required")
	}
	if !ValidCategoryType(string(c.Type)) {
		return fmt.Errorf("invalid type: %q", c.Type)
	}
	if !ValidPoliticalSpectrum(string(c.Metadata.PoliticalSpectrum)) {
		return fmt.Errorf("invalid political_spectrum: %q", c.Metadata.PoliticalSpectrum)
	}
	return nil
}

// EmbeddingText is the text a category is encoded from: name, description
// and keywords joined by spaces, skipping empty parts.
func (c *Category) EmbeddingText() string {
	parts := make([]string, 0, 2+len(c.Keywords))
	if s := strings.TrimSpace(c.Name); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(c.Description); s != "" {
		parts = append(parts, s)
	}
	for _, kw := range c.Keywords {
		if s := strings.TrimSpace(kw); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// SuccessRate is the historical accept ratio, or 0.5 when the category has
// never been used.
func (c *Category) SuccessRate() float64 {
	if c.TotalUsageCount <= 0 {
		return 0.5
	}
	return float64(c.SuccessCount) / float64(c.TotalUsageCount)
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (c Category) Clone() Category {
	out := c
	if c.Keywords != nil {
		out.Keywords = append([]string(nil), c.Keywords...)
	} else {
		out.Keywords = []string{}
	}
	if c.Metadata.PolicyAreas != nil {
		out.Metadata.PolicyAreas = append([]string(nil), c.Metadata.PolicyAreas...)
	}
	if c.Metadata.Provenance != nil {
		p := *c.Metadata.Provenance
		p.SourceIDs = append([]int(nil), p.SourceIDs...)
		out.Metadata.Provenance = &p
	}
	if c.Metadata.Extra != nil {
		out.Metadata.Extra = make(map[string]any, len(c.Metadata.Extra))
		for k, v := range c.Metadata.Extra {
			out.Metadata.Extra[k] = v
		}
	}
	return out
}

// CategoryDraft is the input for creating a category through the admin API
// or from an LLM suggestion.
type CategoryDraft struct {
	Name        string           `json:"name"`
	Type        CategoryType     `json:"type"`
	Description string           `json:"description"`
	Keywords    []string         `json:"keywords"`
	Metadata    CategoryMetadata `json:"metadata"`
}

func (d CategoryDraft) ToCategory() Category {
	kws := d.Keywords
	if kws == nil {
		kws = []string{}
	}
	return Category{
		Name:        strings.TrimSpace(d.Name),
		Type:        d.Type,
		Description: strings.TrimSpace(d.Description),
		Keywords:    kws,
		Metadata:    d.Metadata,
		IsActive:    true,
	}
}

// CategoryPatch is a partial edit of a category. Nil fields are left
// unchanged; Metadata keys are merged into the existing metadata.
type CategoryPatch struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Keywords    []string       `json:"keywords,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p CategoryPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Keywords == nil && len(p.Metadata) == 0
}

// MatchBreakdown explains how a confidence score was assembled.
type MatchBreakdown struct {
	Similarity   float64 `json:"similarity"`
	KeywordBonus float64 `json:"keyword_bonus"`
	SuccessRate  float64 `json:"success_rate"`
	Penalty      float64 `json:"penalty,omitempty"`
}

type CategoryMatch struct {
	CategoryID      int              `json:"category_id"`
	CategoryName    string           `json:"category_name"`
	CategoryType    CategoryType     `json:"category_type"`
	SimilarityScore float64          `json:"similarity_score"`
	ConfidenceScore float64          `json:"confidence_score"`
	Keywords        []string         `json:"keywords"`
	Metadata        CategoryMetadata `json:"metadata"`
	Breakdown       *MatchBreakdown  `json:"breakdown,omitempty"`
}
