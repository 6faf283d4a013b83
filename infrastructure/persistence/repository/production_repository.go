package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"prodtracker-backend/domain/production"
	"prodtracker-backend/infrastructure/persistence/abstractions"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

// ProductionSchema is the key layout of the production records collection.
var ProductionSchema = abstractions.KeySchema{PartitionKey: "pk", SortKey: "sk"}

// ProductionRepository reads and writes monthly production records.
type ProductionRepository struct {
	table  abstractions.Table
	logger *zap.Logger
	now    func() time.Time
}

// NewProductionRepository creates a production repository over the records table.
func NewProductionRepository(table abstractions.Table, logger *zap.Logger) *ProductionRepository {
	return &ProductionRepository{
		table:  table,
		logger: logger.Named("production_repository"),
		now:    time.Now,
	}
}

// ListAll returns every record. Items whose keys cannot be read are
// skipped with a warning.
func (r *ProductionRepository) ListAll(ctx context.Context) ([]production.Record, error) {
	items, err := r.table.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	return r.toRecords(items), nil
}

// GetOne returns the record, or nil when it does not exist.
func (r *ProductionRepository) GetOne(ctx context.Context, companyID, productionSiteID int, month production.MonthYear) (*production.Record, error) {
	if err := checkRecordKey(companyID, productionSiteID, month); err != nil {
		return nil, err
	}

	item, err := r.table.GetByKey(ctx, recordKey(companyID, productionSiteID, month))
	if err != nil || item == nil {
		return nil, err
	}
	rec, err := toRecord(item)
	if err != nil {
		return nil, apperrors.NewInternalError("stored record has an invalid key").WithCause(err)
	}
	return rec, nil
}

// CheckExisting probes for a record before a create. It reads exactly like
// GetOne; the separate name marks a read-before-write collision check.
func (r *ProductionRepository) CheckExisting(ctx context.Context, companyID, productionSiteID int, month production.MonthYear) (*production.Record, error) {
	return r.GetOne(ctx, companyID, productionSiteID, month)
}

// Create stores a new record and stamps createdAt/updatedAt. A record that
// already exists at the key is a ConflictError.
func (r *ProductionRepository) Create(ctx context.Context, companyID, productionSiteID int, month production.MonthYear, m production.Measurements) (*production.Record, error) {
	if err := checkRecordKey(companyID, productionSiteID, month); err != nil {
		return nil, err
	}

	rec := &production.Record{
		CompanyID:        companyID,
		ProductionSiteID: productionSiteID,
		Month:            month,
		Units:            m.Units,
		Charges:          m.Charges,
	}
	rec.Stamp(r.now())

	item, err := toItem(rec)
	if err != nil {
		return nil, err
	}
	if _, err := r.table.Create(ctx, item); err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.NewConflictError(
				fmt.Sprintf("production data for %s already exists for site %s", month.Label(), rec.PK()),
			).WithCode("RECORD_EXISTS").WithCause(err)
		}
		return nil, err
	}
	return rec, nil
}

// Update overwrites the measurement fields set in patch and refreshes
// updatedAt. It returns the whole record after the update.
func (r *ProductionRepository) Update(ctx context.Context, companyID, productionSiteID int, month production.MonthYear, patch production.MeasurementPatch) (*production.Record, error) {
	if err := checkRecordKey(companyID, productionSiteID, month); err != nil {
		return nil, err
	}

	fields := abstractions.Fields{"updatedAt": r.now().UTC().Format(time.RFC3339)}
	for i, v := range patch.Units {
		if v != nil {
			fields[production.UnitFieldNames[i]] = *v
		}
	}
	for i, v := range patch.Charges {
		if v != nil {
			fields[production.ChargeFieldNames[i]] = *v
		}
	}

	item, err := r.table.Update(ctx, recordKey(companyID, productionSiteID, month), fields)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("production record")
		}
		return nil, err
	}
	rec, err := toRecord(item)
	if err != nil {
		return nil, apperrors.NewInternalError("stored record has an invalid key").WithCause(err)
	}
	return rec, nil
}

// Remove deletes the record and returns it, or nil when it did not exist.
func (r *ProductionRepository) Remove(ctx context.Context, companyID, productionSiteID int, month production.MonthYear) (*production.Record, error) {
	if err := checkRecordKey(companyID, productionSiteID, month); err != nil {
		return nil, err
	}

	old, err := r.table.Delete(ctx, recordKey(companyID, productionSiteID, month))
	if err != nil || old == nil {
		return nil, err
	}
	rec, err := toRecord(old)
	if err != nil {
		return nil, apperrors.NewInternalError("stored record has an invalid key").WithCause(err)
	}
	return rec, nil
}

// ListByPartition returns a site's full history in chronological order.
// A site with no recorded months yields an empty slice.
func (r *ProductionRepository) ListByPartition(ctx context.Context, companyID, productionSiteID int) ([]production.Record, error) {
	if err := checkSiteIDs(companyID, productionSiteID); err != nil {
		return nil, err
	}

	items, err := r.table.QueryByPartition(ctx, production.PartitionKey(companyID, productionSiteID))
	if err != nil {
		return nil, err
	}
	return r.toRecords(items), nil
}

// ListByYear returns a site's records for one calendar year. The store
// filter narrows on the sort key text; the exact year check runs here.
func (r *ProductionRepository) ListByYear(ctx context.Context, companyID, productionSiteID, year int) ([]production.Record, error) {
	if err := checkSiteIDs(companyID, productionSiteID); err != nil {
		return nil, err
	}
	if year <= 0 || year > 9999 {
		return nil, apperrors.NewValidationErrorf("invalid year %d", year)
	}

	items, err := r.table.QueryByPartition(ctx,
		production.PartitionKey(companyID, productionSiteID),
		abstractions.Filter{Field: "sk", Operator: abstractions.OpContains, Value: fmt.Sprintf("%04d", year)},
	)
	if err != nil {
		return nil, err
	}

	records := r.toRecords(items)
	out := records[:0]
	for _, rec := range records {
		if rec.Month.Year == year {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *ProductionRepository) toRecords(items []abstractions.Item) []production.Record {
	records := make([]production.Record, 0, len(items))
	for _, item := range items {
		rec, err := toRecord(item)
		if err != nil {
			r.logger.Warn("Skipping unreadable production record", zap.Error(err))
			continue
		}
		records = append(records, *rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].CompanyID != records[j].CompanyID {
			return records[i].CompanyID < records[j].CompanyID
		}
		if records[i].ProductionSiteID != records[j].ProductionSiteID {
			return records[i].ProductionSiteID < records[j].ProductionSiteID
		}
		return records[i].Month.Before(records[j].Month)
	})
	return records
}

func checkRecordKey(companyID, productionSiteID int, month production.MonthYear) error {
	if err := checkSiteIDs(companyID, productionSiteID); err != nil {
		return err
	}
	if month.IsZero() {
		return apperrors.NewValidationError("sk is required")
	}
	return nil
}

func recordKey(companyID, productionSiteID int, month production.MonthYear) abstractions.Item {
	return abstractions.Item{
		"pk": stringKey(production.PartitionKey(companyID, productionSiteID)),
		"sk": stringKey(month.String()),
	}
}

func toItem(rec *production.Record) (abstractions.Item, error) {
	fields := map[string]interface{}{
		"pk":               rec.PK(),
		"sk":               rec.SK(),
		"companyId":        rec.CompanyID,
		"productionSiteId": rec.ProductionSiteID,
		"createdAt":        rec.CreatedAt,
		"updatedAt":        rec.UpdatedAt,
	}
	for i, name := range production.UnitFieldNames {
		fields[name] = rec.Units[i]
	}
	if rec.Charges != nil {
		for i, name := range production.ChargeFieldNames {
			fields[name] = rec.Charges[i]
		}
	}

	item, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode production record").WithCause(err)
	}
	return item, nil
}

// toRecord fails only on unreadable keys. Measurement fields fall back to 0.
func toRecord(item abstractions.Item) (*production.Record, error) {
	companyID, productionSiteID, err := production.ParsePartitionKey(stringAttr(item, "pk"))
	if err != nil {
		return nil, err
	}
	month, err := production.ParseMonthYear(stringAttr(item, "sk"))
	if err != nil {
		return nil, err
	}

	rec := &production.Record{
		CompanyID:        companyID,
		ProductionSiteID: productionSiteID,
		Month:            month,
		CreatedAt:        stringAttr(item, "createdAt"),
		UpdatedAt:        stringAttr(item, "updatedAt"),
	}
	for i, name := range production.UnitFieldNames {
		rec.Units[i] = intAttr(item, name)
	}
	for i, name := range production.ChargeFieldNames {
		if _, ok := item[name]; !ok {
			continue
		}
		if rec.Charges == nil {
			rec.Charges = &production.ChargeMatrix{}
		}
		rec.Charges[i] = floatAttr(item, name)
	}
	return rec, nil
}
