package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/voterprime/catmatch/internal/api/middleware"
	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/service"
	"go.uber.org/zap"
)

type AdminHandler struct {
	svc      *service.CategoryService
	reloader *service.Reloader
	catalog  *catalog.Store
	logger   *zap.Logger
}

func NewAdminHandler(svc *service.CategoryService, reloader *service.Reloader, cat *catalog.Store, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, reloader: reloader, catalog: cat, logger: logger}
}

type keywordsRequest struct {
	Keywords []string `json:"keywords"`
}

type enhanceRequest struct {
	Context string `json:"context,omitempty"`
}

type previewRequest struct {
	Description string `json:"description"`
}

type splitRequest struct {
	Categories []domain.CategoryDraft `json:"categories"`
}

type mergeRequest struct {
	SourceIDs []int                `json:"source_ids"`
	Category  domain.CategoryDraft `json:"category"`
}

// Get handles GET /v1/admin/categories/{id}. Unlike the public route it
// also returns inactive categories.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Create handles POST /v1/admin/categories
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft domain.CategoryDraft
	if err := decode(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.svc.Create(r.Context(), draft, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Preview handles POST /v1/admin/categories/preview
func (h *AdminHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	preview, err := h.svc.Preview(r.Context(), req.Description)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// Update handles PUT /v1/admin/categories/{id}
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch domain.CategoryPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.svc.Update(r.Context(), id, patch, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ReplaceKeywords handles PUT /v1/admin/categories/{id}/keywords
func (h *AdminHandler) ReplaceKeywords(w http.ResponseWriter, r *http.Request) {
	h.keywords(w, r, h.svc.UpdateKeywords)
}

// AddKeywords handles POST /v1/admin/categories/{id}/keywords
func (h *AdminHandler) AddKeywords(w http.ResponseWriter, r *http.Request) {
	h.keywords(w, r, h.svc.AddKeywords)
}

type keywordWriter func(ctx context.Context, id int, keywords []string, actor string) (*domain.Category, error)

func (h *AdminHandler) keywords(w http.ResponseWriter, r *http.Request, write keywordWriter) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req keywordsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := write(r.Context(), id, req.Keywords, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Enhance handles POST /v1/admin/categories/{id}/enhance
func (h *AdminHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req enhanceRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	c, added, err := h.svc.Enhance(r.Context(), id, req.Context, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category":       c,
		"added_keywords": added,
	})
}

// Deactivate handles DELETE /v1/admin/categories/{id}
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.svc.Deactivate)
}

// Reactivate handles POST /v1/admin/categories/{id}/reactivate
func (h *AdminHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.svc.Reactivate)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id int, actor string) error) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := apply(r.Context(), id, middleware.ActorFromContext(r.Context())); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Split handles POST /v1/admin/categories/{id}/split
func (h *AdminHandler) Split(w http.ResponseWriter, r *http.Request) {
	id, err := categoryIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req splitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.svc.Split(r.Context(), id, req.Categories, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"source_id":  id,
		"categories": created,
	})
}

// Merge handles POST /v1/admin/categories/merge
func (h *AdminHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.svc.Merge(r.Context(), req.SourceIDs, req.Category, middleware.ActorFromContext(r.Context()))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Reload handles POST /v1/admin/reload
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.reloader.Reload(r.Context()); err != nil {
		h.logger.Error("manual reload failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "reload failed, previous categories kept")
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Stats())
}

func writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCategoryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSuggesterUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrEncoding):
		writeError(w, http.StatusBadGateway, "failed to encode category")
	default:
		writeError(w, http.StatusInternalServerError, "category update failed")
	}
}
