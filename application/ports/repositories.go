// Package ports declares the interfaces the application layer needs from
// infrastructure.
package ports

import (
	"context"

	"prodtracker-backend/domain/events"
	"prodtracker-backend/domain/production"
	"prodtracker-backend/domain/site"
)

// SiteRepository persists production sites. Reads return nil (not an error)
// for absent keys.
type SiteRepository interface {
	ListAll(ctx context.Context) ([]site.Site, error)
	GetOne(ctx context.Context, companyID, productionSiteID int) (*site.Site, error)
	Create(ctx context.Context, s site.Site) (*site.Site, error)
	Update(ctx context.Context, companyID, productionSiteID int, patch site.Patch) (*site.Site, error)
	Remove(ctx context.Context, companyID, productionSiteID int) (*site.Site, error)
}

// ProductionRepository persists monthly production records.
type ProductionRepository interface {
	ListAll(ctx context.Context) ([]production.Record, error)
	GetOne(ctx context.Context, companyID, productionSiteID int, month production.MonthYear) (*production.Record, error)
	CheckExisting(ctx context.Context, companyID, productionSiteID int, month production.MonthYear) (*production.Record, error)
	Create(ctx context.Context, companyID, productionSiteID int, month production.MonthYear, m production.Measurements) (*production.Record, error)
	Update(ctx context.Context, companyID, productionSiteID int, month production.MonthYear, patch production.MeasurementPatch) (*production.Record, error)
	Remove(ctx context.Context, companyID, productionSiteID int, month production.MonthYear) (*production.Record, error)
	ListByPartition(ctx context.Context, companyID, productionSiteID int) ([]production.Record, error)
	ListByYear(ctx context.Context, companyID, productionSiteID, year int) ([]production.Record, error)
}

// EventPublisher hands domain events to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
