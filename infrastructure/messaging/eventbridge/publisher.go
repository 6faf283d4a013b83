package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"prodtracker-backend/application/ports"
	"prodtracker-backend/domain/events"
	"prodtracker-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// EventBridge accepts at most 10 entries per PutEvents call.
const batchSize = 10

// PutEventsAPI is the part of the EventBridge client the publisher uses
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends domain events to an EventBridge bus
type Publisher struct {
	client       PutEventsAPI
	eventBusName string
	source       string
	metrics      *observability.Collector
	logger       *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new EventBridge publisher. metrics may be nil.
func NewPublisher(client PutEventsAPI, eventBusName string, metrics *observability.Collector, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		source:       events.Source,
		metrics:      metrics,
		logger:       logger.Named("eventbridge"),
	}
}

// Publish sends a single event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of ten. It stops at the first
// failing chunk.
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishBatch(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	sent := make([]events.DomainEvent, 0, len(domainEvents))

	for _, event := range domainEvents {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			p.observe(event, err)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{"prodtracker:" + event.GetAggregateID()},
		})
		sent = append(sent, event)
	}

	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		for _, event := range sent {
			p.observe(event, err)
		}
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	var failed error
	if result.FailedEntryCount > 0 {
		failed = fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}
	for i, event := range sent {
		var entryErr error
		if i < len(result.Entries) && result.Entries[i].ErrorCode != nil {
			entryErr = failed
			p.logger.Error("Failed to publish event",
				zap.String("eventType", event.GetEventType()),
				zap.String("errorCode", aws.ToString(result.Entries[i].ErrorCode)),
				zap.String("errorMessage", aws.ToString(result.Entries[i].ErrorMessage)),
			)
		}
		p.observe(event, entryErr)
	}
	if failed != nil {
		return failed
	}

	p.logger.Debug("Events published",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}

func (p *Publisher) observe(event events.DomainEvent, err error) {
	if p.metrics != nil {
		p.metrics.ObserveEvent(event.GetEventType(), err)
	}
}
