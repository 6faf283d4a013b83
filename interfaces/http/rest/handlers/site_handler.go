package handlers

import (
	"context"
	"net/http"
	"time"

	"prodtracker-backend/application/ports"
	"prodtracker-backend/domain/events"
	"prodtracker-backend/domain/production"
	"prodtracker-backend/domain/site"
	apperrors "prodtracker-backend/pkg/errors"
	"prodtracker-backend/pkg/utils"

	"go.uber.org/zap"
)

// SiteHandler handles production site HTTP requests
type SiteHandler struct {
	sites     ports.SiteRepository
	records   ports.ProductionRepository
	publisher ports.EventPublisher
	errors    *apperrors.ErrorHandler
	logger    *zap.Logger
}

// NewSiteHandler creates a new site handler
func NewSiteHandler(
	sites ports.SiteRepository,
	records ports.ProductionRepository,
	publisher ports.EventPublisher,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *SiteHandler {
	return &SiteHandler{
		sites:     sites,
		records:   records,
		publisher: publisher,
		errors:    errorHandler,
		logger:    logger,
	}
}

// CreateSiteRequest is the body of POST /production-site. Numbers may be
// sent as strings.
type CreateSiteRequest struct {
	CompanyID          flexInt   `json:"companyId"`
	ProductionSiteID   flexInt   `json:"productionSiteId"`
	Name               string    `json:"name" validate:"required"`
	Location           string    `json:"location" validate:"required"`
	Type               string    `json:"type" validate:"required"`
	Status             string    `json:"status"`
	CapacityMW         flexFloat `json:"capacity_MW"`
	Banking            flexBool  `json:"banking"`
	HTSCNo             string    `json:"htscNo"`
	InjectionVoltageKV flexFloat `json:"injectionVoltage_KV"`
	AnnualProductionL  flexFloat `json:"annualProduction_L"`
}

// UpdateSiteRequest is the body of PUT /production-site/{companyId}/{productionSiteId}.
// Only fields present in the body are written.
type UpdateSiteRequest struct {
	Name               *string   `json:"name"`
	Location           *string   `json:"location"`
	Type               *string   `json:"type"`
	Status             *string   `json:"status"`
	CapacityMW         flexFloat `json:"capacity_MW"`
	Banking            flexBool  `json:"banking"`
	HTSCNo             *string   `json:"htscNo"`
	InjectionVoltageKV flexFloat `json:"injectionVoltage_KV"`
	AnnualProductionL  flexFloat `json:"annualProduction_L"`
}

// SiteMetadata summarizes the production history attached to a site
type SiteMetadata struct {
	HasProductionData bool   `json:"hasProductionData"`
	TotalRecords      int    `json:"totalRecords"`
	FirstMonth        string `json:"firstMonth,omitempty"`
	LastMonth         string `json:"lastMonth,omitempty"`
}

// SiteDetailResponse is a site joined with its production history
type SiteDetailResponse struct {
	site.Site
	ProductionData []production.Record `json:"productionData"`
	Metadata       SiteMetadata        `json:"metadata"`
}

// ListSites handles GET /production-site
func (h *SiteHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := h.sites.ListAll(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, sites)
}

// CreateSite handles POST /production-site
func (h *SiteHandler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req CreateSiteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	created, err := h.sites.Create(r.Context(), site.Site{
		CompanyID:          int(req.CompanyID.Value),
		ProductionSiteID:   int(req.ProductionSiteID.Value),
		Name:               req.Name,
		Location:           req.Location,
		Type:               site.Type(req.Type),
		Status:             site.Status(req.Status),
		CapacityMW:         req.CapacityMW.Value,
		Banking:            req.Banking.Value,
		HTSCNo:             req.HTSCNo,
		InjectionVoltageKV: req.InjectionVoltageKV.Value,
		AnnualProductionL:  req.AnnualProductionL.Value,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.publish(r.Context(), events.NewSiteEvent(events.TypeSiteCreated, created.CompanyID, created.ProductionSiteID, time.Now()))
	respondJSON(w, h.logger, http.StatusCreated, created)
}

// GetSite handles GET /production-site/{companyId}/{productionSiteId}
func (h *SiteHandler) GetSite(w http.ResponseWriter, r *http.Request) {
	companyID, productionSiteID, err := pathSiteIDs(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	s, err := h.sites.GetOne(r.Context(), companyID, productionSiteID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if s == nil {
		h.errors.Handle(w, r, apperrors.NewNotFoundError("production site"))
		return
	}

	records, err := h.records.ListByPartition(r.Context(), companyID, productionSiteID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	meta := SiteMetadata{HasProductionData: len(records) > 0, TotalRecords: len(records)}
	if len(records) > 0 {
		meta.FirstMonth = records[0].SK()
		meta.LastMonth = records[len(records)-1].SK()
	}

	respondJSON(w, h.logger, http.StatusOK, SiteDetailResponse{
		Site:           *s,
		ProductionData: records,
		Metadata:       meta,
	})
}

// UpdateSite handles PUT /production-site/{companyId}/{productionSiteId}
func (h *SiteHandler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	companyID, productionSiteID, err := pathSiteIDs(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var req UpdateSiteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	patch := req.toPatch()
	if patch.IsEmpty() {
		h.errors.Handle(w, r, apperrors.NewValidationError("no fields to update"))
		return
	}

	updated, err := h.sites.Update(r.Context(), companyID, productionSiteID, patch)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.publish(r.Context(), events.NewSiteEvent(events.TypeSiteUpdated, companyID, productionSiteID, time.Now()))
	respondJSON(w, h.logger, http.StatusOK, updated)
}

// DeleteSite handles DELETE /production-site/{companyId}/{productionSiteId}.
// Production records of the site are kept.
func (h *SiteHandler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	companyID, productionSiteID, err := pathSiteIDs(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	old, err := h.sites.Remove(r.Context(), companyID, productionSiteID)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if old == nil {
		h.errors.Handle(w, r, apperrors.NewNotFoundError("production site"))
		return
	}

	h.publish(r.Context(), events.NewSiteEvent(events.TypeSiteDeleted, companyID, productionSiteID, time.Now()))
	w.WriteHeader(http.StatusNoContent)
}

func (req UpdateSiteRequest) toPatch() site.Patch {
	p := site.Patch{
		Name:     req.Name,
		Location: req.Location,
		Type:     req.Type,
		Status:   req.Status,
		HTSCNo:   req.HTSCNo,
	}
	if req.CapacityMW.Set {
		p.CapacityMW = &req.CapacityMW.Value
	}
	if req.Banking.Set {
		p.Banking = &req.Banking.Value
	}
	if req.InjectionVoltageKV.Set {
		p.InjectionVoltageKV = &req.InjectionVoltageKV.Value
	}
	if req.AnnualProductionL.Set {
		p.AnnualProductionL = &req.AnnualProductionL.Value
	}
	return p
}

func (h *SiteHandler) publish(ctx context.Context, event events.DomainEvent) {
	publishEvent(ctx, h.publisher, h.logger, event)
}

// publishEvent sends an event after a committed mutation. Failures are
// logged and never reach the client.
func publishEvent(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, event events.DomainEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.String("aggregateID", event.GetAggregateID()),
			zap.Error(err),
		)
	}
}
