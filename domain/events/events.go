package events

import (
	"fmt"
	"time"
)

// Source is the EventBridge source of every event this service emits.
const Source = "prodtracker.backend"

// Event types
const (
	TypeSiteCreated        = "site.created"
	TypeSiteUpdated        = "site.updated"
	TypeSiteDeleted        = "site.deleted"
	TypeProductionRecorded = "production.recorded"
	TypeProductionUpdated  = "production.updated"
	TypeProductionDeleted  = "production.deleted"
)

// DomainEvent is something that has already happened to a site or record.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// SiteEvent is raised when a site is created, updated or deleted.
type SiteEvent struct {
	BaseEvent
	CompanyID        int `json:"company_id"`
	ProductionSiteID int `json:"production_site_id"`
}

// NewSiteEvent creates a site event of the given type.
func NewSiteEvent(eventType string, companyID, productionSiteID int, timestamp time.Time) SiteEvent {
	return SiteEvent{
		BaseEvent: BaseEvent{
			AggregateID: siteAggregateID(companyID, productionSiteID),
			EventType:   eventType,
			Timestamp:   timestamp,
		},
		CompanyID:        companyID,
		ProductionSiteID: productionSiteID,
	}
}

// ProductionEvent is raised when a monthly record is written or removed.
type ProductionEvent struct {
	BaseEvent
	PK          string  `json:"pk"`
	SK          string  `json:"sk"`
	TotalUnit   int64   `json:"total_unit"`
	TotalCharge float64 `json:"total_charge"`
}

// NewProductionEvent creates a production event of the given type.
func NewProductionEvent(eventType, pk, sk string, totalUnit int64, totalCharge float64, timestamp time.Time) ProductionEvent {
	return ProductionEvent{
		BaseEvent: BaseEvent{
			AggregateID: pk + "#" + sk,
			EventType:   eventType,
			Timestamp:   timestamp,
		},
		PK:          pk,
		SK:          sk,
		TotalUnit:   totalUnit,
		TotalCharge: totalCharge,
	}
}

func siteAggregateID(companyID, productionSiteID int) string {
	return fmt.Sprintf("site#%d#%d", companyID, productionSiteID)
}
