package eventbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"prodtracker-backend/domain/events"
	"prodtracker-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPutEvents struct {
	mock.Mock
}

func (m *mockPutEvents) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func siteEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, events.NewSiteEvent(events.TypeSiteCreated, 1, i+1, time.Unix(0, 0)))
	}
	return out
}

func TestPublisher_Publish(t *testing.T) {
	client := new(mockPutEvents)
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		if len(in.Entries) != 1 {
			return false
		}
		e := in.Entries[0]
		return aws.ToString(e.EventBusName) == "bus" &&
			aws.ToString(e.Source) == events.Source &&
			aws.ToString(e.DetailType) == events.TypeProductionRecorded &&
			e.Resources[0] == "prodtracker:1_1#012024"
	})).Return(&eventbridge.PutEventsOutput{}, nil)

	metrics := observability.NewCollector("test")
	p := NewPublisher(client, "bus", metrics, zap.NewNop())
	err := p.Publish(context.Background(),
		events.NewProductionEvent(events.TypeProductionRecorded, "1_1", "012024", 1500, 0, time.Now()))
	require.NoError(t, err)
	client.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(events.TypeProductionRecorded, "success")))
}

func TestPublisher_BatchesOfTen(t *testing.T) {
	client := new(mockPutEvents)
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 10
	})).Return(&eventbridge.PutEventsOutput{}, nil).Twice()
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 3
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	p := NewPublisher(client, "bus", nil, zap.NewNop())
	require.NoError(t, p.PublishBatch(context.Background(), siteEvents(23)))
	client.AssertExpectations(t)
}

func TestPublisher_Failures(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		client := new(mockPutEvents)
		client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		metrics := observability.NewCollector("test")
		p := NewPublisher(client, "bus", metrics, zap.NewNop())
		err := p.PublishBatch(context.Background(), siteEvents(2))
		assert.ErrorContains(t, err, "throttled")
		assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(events.TypeSiteCreated, "error")))
	})

	t.Run("failed entries", func(t *testing.T) {
		client := new(mockPutEvents)
		client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("a")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
			},
		}, nil)

		metrics := observability.NewCollector("test")
		p := NewPublisher(client, "bus", metrics, zap.NewNop())
		err := p.PublishBatch(context.Background(), siteEvents(2))
		assert.ErrorContains(t, err, "1 events failed")
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(events.TypeSiteCreated, "success")))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(events.TypeSiteCreated, "error")))
	})

	t.Run("empty batch", func(t *testing.T) {
		client := new(mockPutEvents)
		p := NewPublisher(client, "bus", nil, zap.NewNop())
		assert.NoError(t, p.PublishBatch(context.Background(), nil))
		client.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
	})
}
