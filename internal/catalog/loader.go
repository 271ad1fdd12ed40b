package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/voterprime/catmatch/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type fileCategory struct {
	ID              int            `yaml:"id"`
	Name            string         `yaml:"name"`
	Type            string         `yaml:"type"`
	Description     string         `yaml:"description"`
	Keywords        []string       `yaml:"keywords"`
	SuccessCount    int            `yaml:"success_count"`
	TotalUsageCount int            `yaml:"total_usage_count"`
	Metadata        map[string]any `yaml:"metadata"`
	IsActive        *bool          `yaml:"is_active"`
}

type categoryFile struct {
	Categories []fileCategory `yaml:"categories"`
}

// LoadFile reads a YAML category file. Entries missing an id, a name or a
// valid type are skipped with a warning; the rest keep file order.
func LoadFile(path string, logger *zap.Logger) ([]domain.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category file: %w", err)
	}
	return Parse(data, logger)
}

func Parse(data []byte, logger *zap.Logger) ([]domain.Category, error) {
	var f categoryFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse category file: %w", err)
	}

	out := make([]domain.Category, 0, len(f.Categories))
	seen := make(map[int]bool, len(f.Categories))
	for i, fc := range f.Categories {
		c, err := fc.toCategory()
		if err == nil && seen[c.ID] {
			err = fmt.Errorf("duplicate id %d", c.ID)
		}
		if err != nil {
			logger.Warn("skipping invalid category entry",
				zap.Int("index", i),
				zap.String("name", fc.Name),
				zap.Error(err))
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out, nil
}

func (fc fileCategory) toCategory() (domain.Category, error) {
	if fc.ID <= 0 {
		return domain.Category{}, fmt.Errorf("id is required")
	}
	meta, err := domain.MetadataFromMap(fc.Metadata)
	if err != nil {
		return domain.Category{}, err
	}

	keywords := make([]string, 0, len(fc.Keywords))
	for _, kw := range fc.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	active := true
	if fc.IsActive != nil {
		active = *fc.IsActive
	}

	c := domain.Category{
		ID:              fc.ID,
		Name:            strings.TrimSpace(fc.Name),
		Type:            domain.CategoryType(strings.TrimSpace(fc.Type)),
		Description:     strings.TrimSpace(fc.Description),
		Keywords:        keywords,
		SuccessCount:    fc.SuccessCount,
		TotalUsageCount: fc.TotalUsageCount,
		Metadata:        meta,
		IsActive:        active,
	}
	if err := c.Validate(); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}
