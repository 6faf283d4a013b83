package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"prodtracker-backend/application/ports"
	"prodtracker-backend/domain/events"
	"prodtracker-backend/domain/production"
	apperrors "prodtracker-backend/pkg/errors"

	"go.uber.org/zap"
)

// ProductionHandler handles production record HTTP requests
type ProductionHandler struct {
	records   ports.ProductionRepository
	publisher ports.EventPublisher
	errors    *apperrors.ErrorHandler
	logger    *zap.Logger
}

// NewProductionHandler creates a new production handler
func NewProductionHandler(
	records ports.ProductionRepository,
	publisher ports.EventPublisher,
	errorHandler *apperrors.ErrorHandler,
	logger *zap.Logger,
) *ProductionHandler {
	return &ProductionHandler{
		records:   records,
		publisher: publisher,
		errors:    errorHandler,
		logger:    logger,
	}
}

// PartitionResponse is the body of GET /production-unit/{companyId}/{productionSiteId}
type PartitionResponse struct {
	Data    []production.Record `json:"data"`
	Message string              `json:"message"`
}

// recordBody is a decoded record request. Keys are kept raw so absent
// fields can be told apart from zeros.
type recordBody map[string]json.RawMessage

// ListRecords handles GET /production-unit
func (h *ProductionHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListAll(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, records)
}

// ListSiteRecords handles GET /production-unit/{companyId}/{productionSiteId}.
// An optional year query parameter narrows the history to one year.
func (h *ProductionHandler) ListSiteRecords(w http.ResponseWriter, r *http.Request) {
	companyID, productionSiteID, err := pathSiteIDs(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var records []production.Record
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, convErr := strconv.Atoi(raw)
		if convErr != nil {
			h.errors.Handle(w, r, apperrors.NewValidationErrorf("invalid year %q", raw))
			return
		}
		records, err = h.records.ListByYear(r.Context(), companyID, productionSiteID, year)
	} else {
		records, err = h.records.ListByPartition(r.Context(), companyID, productionSiteID)
	}
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	message := fmt.Sprintf("Found %d production records", len(records))
	if len(records) == 0 {
		message = "No production data found for site " + production.PartitionKey(companyID, productionSiteID)
	}
	respondJSON(w, h.logger, http.StatusOK, PartitionResponse{Data: records, Message: message})
}

// GetRecord handles GET /production-unit/{companyId}/{productionSiteId}/{month}
func (h *ProductionHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	companyID, productionSiteID, err := pathSiteIDs(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	month, err := pathMonth(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	rec, err := h.records.CheckExisting(r.Context(), companyID, productionSiteID, month)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if rec == nil {
		h.errors.Handle(w, r, apperrors.NewNotFoundError("production record"))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, rec)
}

// CreateRecord handles POST /production-unit. The site is named either by
// pk or by companyId and productionSiteId; when both are sent they must agree.
func (h *ProductionHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var body recordBody
	if err := decodeJSON(r, &body); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	companyID, productionSiteID, err := body.siteIDs()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	month, err := body.month()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	patch, err := body.patch()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	rec, err := h.records.Create(r.Context(), companyID, productionSiteID, month, measurementsOf(patch))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Production data recorded", zap.String("pk", rec.PK()), zap.String("sk", rec.SK()))
	publishEvent(r.Context(), h.publisher, h.logger,
		events.NewProductionEvent(events.TypeProductionRecorded, rec.PK(), rec.SK(), rec.TotalUnit(), rec.TotalCharge(), time.Now()))
	respondJSON(w, h.logger, http.StatusCreated, rec)
}

// UpdateRecord handles PUT /production-unit/{companyId}/{productionSiteId}/{month}
func (h *ProductionHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	companyID, productionSiteID, err := pathSiteIDs(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	month, err := pathMonth(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var body recordBody
	if err := decodeJSON(r, &body); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	patch, err := body.patch()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if patch.IsEmpty() {
		h.errors.Handle(w, r, apperrors.NewValidationError("no measurement fields to update"))
		return
	}

	rec, err := h.records.Update(r.Context(), companyID, productionSiteID, month, patch)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	publishEvent(r.Context(), h.publisher, h.logger,
		events.NewProductionEvent(events.TypeProductionUpdated, rec.PK(), rec.SK(), rec.TotalUnit(), rec.TotalCharge(), time.Now()))
	respondJSON(w, h.logger, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /production-unit/{companyId}/{productionSiteId}/{month}
func (h *ProductionHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	companyID, productionSiteID, err := pathSiteIDs(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	month, err := pathMonth(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	old, err := h.records.Remove(r.Context(), companyID, productionSiteID, month)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if old == nil {
		h.errors.Handle(w, r, apperrors.NewNotFoundError("production record"))
		return
	}

	publishEvent(r.Context(), h.publisher, h.logger,
		events.NewProductionEvent(events.TypeProductionDeleted, old.PK(), old.SK(), old.TotalUnit(), old.TotalCharge(), time.Now()))
	respondJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

func (b recordBody) siteIDs() (int, int, error) {
	var companyID, productionSiteID flexInt
	if err := b.field("companyId", &companyID); err != nil {
		return 0, 0, err
	}
	if err := b.field("productionSiteId", &productionSiteID); err != nil {
		return 0, 0, err
	}
	var pk string
	if err := b.field("pk", &pk); err != nil {
		return 0, 0, err
	}

	if strings.TrimSpace(pk) == "" {
		if !companyID.Set || !productionSiteID.Set {
			return 0, 0, apperrors.NewValidationError("pk or companyId and productionSiteId are required")
		}
		return int(companyID.Value), int(productionSiteID.Value), nil
	}

	c, p, err := production.ParsePartitionKey(pk)
	if err != nil {
		return 0, 0, apperrors.NewValidationError(err.Error())
	}
	if (companyID.Set && int(companyID.Value) != c) || (productionSiteID.Set && int(productionSiteID.Value) != p) {
		return 0, 0, apperrors.NewValidationErrorf("pk %q does not match companyId and productionSiteId", pk)
	}
	return c, p, nil
}

func (b recordBody) month() (production.MonthYear, error) {
	var sk string
	if err := b.field("sk", &sk); err != nil {
		return production.MonthYear{}, err
	}
	if strings.TrimSpace(sk) == "" {
		return production.MonthYear{}, apperrors.NewValidationError("sk is required")
	}
	month, err := production.ParseMonthYear(sk)
	if err != nil {
		return production.MonthYear{}, apperrors.NewValidationError(err.Error())
	}
	return month, nil
}

// patch collects the measurement fields present in the body. Derived and
// unknown keys are ignored.
func (b recordBody) patch() (production.MeasurementPatch, error) {
	var p production.MeasurementPatch
	for i, name := range production.UnitFieldNames {
		var v flexInt
		if err := b.field(name, &v); err != nil {
			return p, err
		}
		if v.Set {
			if v.Value < 0 {
				return p, apperrors.NewValidationErrorf("%s must be >= 0", name)
			}
			p.Units[i] = &v.Value
		}
	}
	for i, name := range production.ChargeFieldNames {
		var v flexFloat
		if err := b.field(name, &v); err != nil {
			return p, err
		}
		if v.Set {
			if !(v.Value >= 0) {
				return p, apperrors.NewValidationErrorf("%s must be >= 0", name)
			}
			p.Charges[i] = &v.Value
		}
	}
	return p, nil
}

func (b recordBody) field(name string, v interface{}) error {
	raw, ok := b[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		if appErr := apperrors.GetAppError(err); appErr != nil {
			return apperrors.NewValidationErrorf("%s: %s", name, appErr.Message)
		}
		return apperrors.NewValidationErrorf("%s is invalid", name)
	}
	return nil
}

// measurementsOf turns a create body into measurements. Missing units are 0;
// the charge matrix exists only when at least one charge field was sent.
func measurementsOf(p production.MeasurementPatch) production.Measurements {
	var m production.Measurements
	for i, v := range p.Units {
		if v != nil {
			m.Units[i] = *v
		}
	}
	for i, v := range p.Charges {
		if v == nil {
			continue
		}
		if m.Charges == nil {
			m.Charges = &production.ChargeMatrix{}
		}
		m.Charges[i] = *v
	}
	return m
}
