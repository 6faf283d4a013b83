package decorators

import (
	"context"
	"errors"
	"testing"
	"time"

	"prodtracker-backend/infrastructure/persistence/abstractions"
	"prodtracker-backend/infrastructure/persistence/memory"
	apperrors "prodtracker-backend/pkg/errors"
	"prodtracker-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// failingTable returns err from every operation.
type failingTable struct {
	abstractions.Table
	err   error
	calls int
}

func (f *failingTable) GetByKey(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	f.calls++
	return nil, f.err
}

func newTable() *memory.Table {
	return memory.NewTable("ProductionTable", abstractions.KeySchema{PartitionKey: "pk", SortKey: "sk"})
}

func item() abstractions.Item {
	return abstractions.Item{
		"pk": &types.AttributeValueMemberS{Value: "1_1"},
		"sk": &types.AttributeValueMemberS{Value: "112024"},
		"c1": &types.AttributeValueMemberN{Value: "100"},
	}
}

func TestLoggingTable(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	table := NewLoggingTable(newTable(), zap.New(core), DefaultLoggingConfig())

	_, err := table.Create(ctx, item())
	require.NoError(t, err)

	entries := logs.FilterMessage("store operation").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "create", fields["operation"])
	assert.Equal(t, "ProductionTable", fields["collection"])
	assert.Equal(t, map[string]interface{}{"pk": "1_1", "sk": "112024"}, fields["key"])
	assert.Contains(t, fields, "item")

	_, err = table.Create(ctx, item())
	assert.True(t, apperrors.IsConflict(err))

	failures := logs.FilterMessage("store operation failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
}

func TestInstrumentedTable(t *testing.T) {
	ctx := context.Background()
	metrics := observability.NewCollector("test")
	table := NewInstrumentedTable(newTable(), metrics, noop.NewTracerProvider().Tracer("test"))

	_, err := table.Put(ctx, item())
	require.NoError(t, err)
	_, err = table.Update(ctx, abstractions.Item{
		"pk": &types.AttributeValueMemberS{Value: "9_9"},
		"sk": &types.AttributeValueMemberS{Value: "112024"},
	}, abstractions.Fields{"c1": 1})
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("put", "ProductionTable", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StoreOperations.WithLabelValues("update", "ProductionTable", "error")))
}

func TestBreakerTable(t *testing.T) {
	ctx := context.Background()
	config := BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}

	t.Run("store failures open the breaker", func(t *testing.T) {
		inner := &failingTable{
			Table: newTable(),
			err:   apperrors.NewStoreError("get", "ProductionTable", errors.New("boom")),
		}
		table := NewBreakerTable(inner, config, zap.NewNop(), nil)

		for i := 0; i < 2; i++ {
			_, err := table.GetByKey(ctx, item())
			assert.True(t, apperrors.IsStore(err))
		}
		assert.Equal(t, gobreaker.StateOpen, table.State())

		_, err := table.GetByKey(ctx, item())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("not found does not count as failure", func(t *testing.T) {
		inner := &failingTable{Table: newTable(), err: apperrors.NewNotFoundError("item")}
		table := NewBreakerTable(inner, config, zap.NewNop(), nil)

		for i := 0; i < 5; i++ {
			_, err := table.GetByKey(ctx, item())
			assert.True(t, apperrors.IsNotFound(err))
		}
		assert.Equal(t, gobreaker.StateClosed, table.State())
	})

	t.Run("passes results through", func(t *testing.T) {
		table := NewBreakerTable(newTable(), config, zap.NewNop(), nil)
		_, err := table.Put(ctx, item())
		require.NoError(t, err)

		got, err := table.GetByKey(ctx, item())
		require.NoError(t, err)
		assert.Equal(t, item()["c1"], got["c1"])

		items, err := table.QueryByPartition(ctx, "1_1")
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})
}
