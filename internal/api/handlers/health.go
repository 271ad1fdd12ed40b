package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/voterprime/catmatch/internal/buildconfig"
	"github.com/voterprime/catmatch/internal/catalog"
)

const healthPingTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	catalog *catalog.Store
	started time.Time
}

func NewHealthHandler(db Pinger, cat *catalog.Store) *HealthHandler {
	return &HealthHandler{db: db, catalog: cat, started: time.Now()}
}

type healthResponse struct {
	Status        string            `json:"status"`
	Database      string            `json:"database"`
	DatabaseError string            `json:"database_error,omitempty"`
	Categories    catalog.Stats     `json:"categories"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Build         map[string]string `json:"build"`
}

// Check handles GET /health. The service is healthy when the database
// answers and a category generation is loaded.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Database:      "ok",
		Categories:    h.catalog.Stats(),
		UptimeSeconds: time.Since(h.started).Seconds(),
		Build:         buildconfig.VersionInfo(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "error"
		resp.Database = "error"
		resp.DatabaseError = err.Error()
	}
	if !resp.Categories.Loaded {
		resp.Status = "error"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
