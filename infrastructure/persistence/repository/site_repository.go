package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"prodtracker-backend/domain/site"
	"prodtracker-backend/infrastructure/persistence/abstractions"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

// SiteSchema is the key layout of the sites collection.
var SiteSchema = abstractions.KeySchema{PartitionKey: "companyId", SortKey: "productionSiteId"}

// siteItem is the stored form of a site. Banking is kept as 0/1.
type siteItem struct {
	CompanyID          int     `dynamodbav:"companyId"`
	ProductionSiteID   int     `dynamodbav:"productionSiteId"`
	Name               string  `dynamodbav:"name"`
	Location           string  `dynamodbav:"location"`
	Type               string  `dynamodbav:"type"`
	Status             string  `dynamodbav:"status"`
	CapacityMW         float64 `dynamodbav:"capacity_MW"`
	Banking            int     `dynamodbav:"banking"`
	HTSCNo             string  `dynamodbav:"htscNo"`
	InjectionVoltageKV float64 `dynamodbav:"injectionVoltage_KV"`
	AnnualProductionL  float64 `dynamodbav:"annualProduction_L"`
	CreatedAt          string  `dynamodbav:"createdAt,omitempty"`
	UpdatedAt          string  `dynamodbav:"updatedAt,omitempty"`
}

// SiteRepository reads and writes production sites.
type SiteRepository struct {
	table  abstractions.Table
	logger *zap.Logger
	now    func() time.Time
}

// NewSiteRepository creates a site repository over the sites table.
func NewSiteRepository(table abstractions.Table, logger *zap.Logger) *SiteRepository {
	return &SiteRepository{
		table:  table,
		logger: logger.Named("site_repository"),
		now:    time.Now,
	}
}

// ListAll returns every site ordered by company then site id. An empty
// collection yields an empty slice.
func (r *SiteRepository) ListAll(ctx context.Context) ([]site.Site, error) {
	items, err := r.table.ScanAll(ctx)
	if err != nil {
		return nil, err
	}

	sites := make([]site.Site, 0, len(items))
	for _, item := range items {
		sites = append(sites, toSite(item))
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].CompanyID != sites[j].CompanyID {
			return sites[i].CompanyID < sites[j].CompanyID
		}
		return sites[i].ProductionSiteID < sites[j].ProductionSiteID
	})
	return sites, nil
}

// GetOne returns the site, or nil when it does not exist.
func (r *SiteRepository) GetOne(ctx context.Context, companyID, productionSiteID int) (*site.Site, error) {
	if err := checkSiteIDs(companyID, productionSiteID); err != nil {
		return nil, err
	}

	item, err := r.table.GetByKey(ctx, siteKey(companyID, productionSiteID))
	if err != nil || item == nil {
		return nil, err
	}
	s := toSite(item)
	return &s, nil
}

// Create stores a new site. A zero companyId becomes the default company
// and a zero productionSiteId is allocated as one past the highest id in
// that company. An existing site at the same key is a ConflictError.
func (r *SiteRepository) Create(ctx context.Context, s site.Site) (*site.Site, error) {
	if err := s.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if s.CompanyID < 0 || s.ProductionSiteID < 0 {
		return nil, apperrors.NewValidationError("companyId and productionSiteId must be positive")
	}
	if s.CompanyID == 0 {
		s.CompanyID = site.DefaultCompanyID
	}
	if s.ProductionSiteID == 0 {
		next, err := r.nextSiteID(ctx, s.CompanyID)
		if err != nil {
			return nil, err
		}
		s.ProductionSiteID = next
	}

	ts := r.now().UTC().Format(time.RFC3339)
	s.CreatedAt, s.UpdatedAt = ts, ts

	item, err := attributevalue.MarshalMap(fromSite(s))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode site").WithCause(err)
	}
	if _, err := r.table.Create(ctx, item); err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.NewConflictError(
				fmt.Sprintf("site %d/%d already exists", s.CompanyID, s.ProductionSiteID),
			).WithCode("SITE_EXISTS").WithCause(err)
		}
		return nil, err
	}

	r.logger.Info("Site created",
		zap.Int("companyId", s.CompanyID),
		zap.Int("productionSiteId", s.ProductionSiteID),
	)
	return &s, nil
}

// Update overwrites the fields set in patch and returns the whole site.
func (r *SiteRepository) Update(ctx context.Context, companyID, productionSiteID int, patch site.Patch) (*site.Site, error) {
	if err := checkSiteIDs(companyID, productionSiteID); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	fields := abstractions.Fields(patch.ToFields())
	fields["updatedAt"] = r.now().UTC().Format(time.RFC3339)

	item, err := r.table.Update(ctx, siteKey(companyID, productionSiteID), fields)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFoundError("production site")
		}
		return nil, err
	}
	s := toSite(item)
	return &s, nil
}

// Remove deletes the site and returns it, or nil when it did not exist.
// Production records of the site are left in place.
func (r *SiteRepository) Remove(ctx context.Context, companyID, productionSiteID int) (*site.Site, error) {
	if err := checkSiteIDs(companyID, productionSiteID); err != nil {
		return nil, err
	}

	old, err := r.table.Delete(ctx, siteKey(companyID, productionSiteID))
	if err != nil || old == nil {
		return nil, err
	}
	s := toSite(old)
	return &s, nil
}

// nextSiteID reads the company partition and returns max + 1. Two
// concurrent creates can pick the same id; the conditional create turns
// the loser into a ConflictError.
func (r *SiteRepository) nextSiteID(ctx context.Context, companyID int) (int, error) {
	items, err := r.table.QueryByPartition(ctx, companyID)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, item := range items {
		if id := int(intAttr(item, "productionSiteId")); id > highest {
			highest = id
		}
	}
	return highest + 1, nil
}

func checkSiteIDs(companyID, productionSiteID int) error {
	if companyID <= 0 || productionSiteID <= 0 {
		return apperrors.NewValidationError("companyId and productionSiteId must be positive integers")
	}
	return nil
}

func siteKey(companyID, productionSiteID int) abstractions.Item {
	return abstractions.Item{
		"companyId":        numberKey(companyID),
		"productionSiteId": numberKey(productionSiteID),
	}
}

func fromSite(s site.Site) siteItem {
	return siteItem{
		CompanyID:          s.CompanyID,
		ProductionSiteID:   s.ProductionSiteID,
		Name:               s.Name,
		Location:           s.Location,
		Type:               string(s.Type),
		Status:             string(s.Status),
		CapacityMW:         s.CapacityMW,
		Banking:            site.BankingToInt(s.Banking),
		HTSCNo:             s.HTSCNo,
		InjectionVoltageKV: s.InjectionVoltageKV,
		AnnualProductionL:  s.AnnualProductionL,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// toSite never fails: unreadable fields fall back to zero values.
func toSite(item abstractions.Item) site.Site {
	s := site.Site{
		CompanyID:          int(intAttr(item, "companyId")),
		ProductionSiteID:   int(intAttr(item, "productionSiteId")),
		Name:               stringAttr(item, "name"),
		Location:           stringAttr(item, "location"),
		CapacityMW:         floatAttr(item, "capacity_MW"),
		Banking:            boolAttr(item, "banking"),
		HTSCNo:             stringAttr(item, "htscNo"),
		InjectionVoltageKV: floatAttr(item, "injectionVoltage_KV"),
		AnnualProductionL:  floatAttr(item, "annualProduction_L"),
		CreatedAt:          stringAttr(item, "createdAt"),
		UpdatedAt:          stringAttr(item, "updatedAt"),
	}

	if t, err := site.ParseType(stringAttr(item, "type")); err == nil {
		s.Type = t
	} else {
		s.Type = site.Type(stringAttr(item, "type"))
	}
	if st, err := site.ParseStatus(stringAttr(item, "status")); err == nil {
		s.Status = st
	} else {
		s.Status = site.Status(stringAttr(item, "status"))
	}
	return s
}
