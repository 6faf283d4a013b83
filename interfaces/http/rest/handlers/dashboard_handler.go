package handlers

import (
	"net/http"
	"time"

	"prodtracker-backend/application/dashboard"
	"prodtracker-backend/application/ports"
	apperrors "prodtracker-backend/pkg/errors"
	"prodtracker-backend/pkg/utils"

	"go.uber.org/zap"
)

// DashboardHandler serves aggregate statistics
type DashboardHandler struct {
	sites   ports.SiteRepository
	records ports.ProductionRepository
	errors  *apperrors.ErrorHandler
	logger  *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	sites ports.SiteRepository,
	records ports.ProductionRepository,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *DashboardHandler {
	return &DashboardHandler{sites: sites, records: records, errors: errorHandler, logger: logger}
}

// GetSummary handles GET /dashboard/summary
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sites, err := h.sites.ListAll(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	records, err := h.records.ListAll(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, dashboard.Summarize(sites, records))
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// HealthHandler reports liveness
type HealthHandler struct {
	started time.Time
	logger  *zap.Logger
}

// NewHealthHandler creates a health handler; uptime counts from now.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{started: time.Now(), logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: utils.NowRFC3339(),
		Uptime:    time.Since(h.started).Seconds(),
	})
}
