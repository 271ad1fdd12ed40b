package handlers

import (
	"net/http"

	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
)

// CategoryHandler serves the live category generation read-only.
type CategoryHandler struct {
	catalog *catalog.Store
}

func NewCategoryHandler(cat *catalog.Store) *CategoryHandler {
	return &CategoryHandler{catalog: cat}
}

type categoryInfo struct {
	CategoryID  int                     `json:"category_id"`
	Name        string                  `json:"name"`
	Type        domain.CategoryType     `json:"type"`
	Description string                  `json:"description"`
	Keywords    []string                `json:"keywords"`
	SuccessRate float64                 `json:"success_rate"`
	TotalUsage  int                     `json:"total_usage"`
	Metadata    domain.CategoryMetadata `json:"metadata"`
}

func toCategoryInfo(c domain.Category) categoryInfo {
	return categoryInfo{
		CategoryID:  c.ID,
		Name:        c.Name,
		Type:        c.Type,
		Description: c.Description,
		Keywords:    c.Keywords,
		SuccessRate: c.SuccessRate(),
		TotalUsage:  c.TotalUsageCount,
		Metadata:    c.Metadata,
	}
}

// List handles GET /v1/categories?type=
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.catalog.Loaded() {
		writeError(w, http.StatusServiceUnavailable, "categories not loaded")
		return
	}

	var cats []domain.Category
	if t := r.URL.Query().Get("type"); t != "" {
		if !domain.ValidCategoryType(t) {
			writeError(w, http.StatusBadRequest, "invalid category type: "+t)
			return
		}
		cats = h.catalog.GetByType(domain.CategoryType(t))
	} else {
		cats = h.catalog.All()
	}

	out := make([]categoryInfo, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryInfo(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": out,
		"total":      len(out),
	})
}

// Get handles GET /v1/categories/{id}
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.catalog.Loaded() {
		writeError(w, http.StatusServiceUnavailable, "categories not loaded")
		return
	}

	c, ok := h.catalog.GetByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, toCategoryInfo(c))
}

// Stats handles GET /v1/categories/stats
func (h *CategoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Stats())
}
