package decorators

import (
	"context"
	"errors"
	"time"

	"prodtracker-backend/infrastructure/persistence/abstractions"
	apperrors "prodtracker-backend/pkg/errors"
	"prodtracker-backend/pkg/observability"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the store circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// BreakerTable fails fast with UnavailableError while the store keeps
// failing. Calls are never retried. Only StoreError counts as a failure;
// not found, conflict and validation outcomes are normal answers.
type BreakerTable struct {
	inner abstractions.Table
	cb    *gobreaker.CircuitBreaker
}

var _ abstractions.Table = (*BreakerTable)(nil)

// NewBreakerTable wraps inner with a breaker named after the table.
// metrics may be nil.
func NewBreakerTable(inner abstractions.Table, config BreakerConfig, logger *zap.Logger, metrics *observability.Collector) *BreakerTable {
	name := inner.Name()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if metrics != nil {
				metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsStore(err)
		},
	})

	return &BreakerTable{inner: inner, cb: cb}
}

// State exposes the breaker state for health reporting
func (t *BreakerTable) State() gobreaker.State {
	return t.cb.State()
}

func (t *BreakerTable) Name() string { return t.inner.Name() }

func (t *BreakerTable) Schema() abstractions.KeySchema { return t.inner.Schema() }

func (t *BreakerTable) ScanAll(ctx context.Context) ([]abstractions.Item, error) {
	return t.items(func() ([]abstractions.Item, error) { return t.inner.ScanAll(ctx) })
}

func (t *BreakerTable) GetByKey(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	return t.item(func() (abstractions.Item, error) { return t.inner.GetByKey(ctx, key) })
}

func (t *BreakerTable) Put(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	return t.item(func() (abstractions.Item, error) { return t.inner.Put(ctx, item) })
}

func (t *BreakerTable) Create(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	return t.item(func() (abstractions.Item, error) { return t.inner.Create(ctx, item) })
}

func (t *BreakerTable) Update(ctx context.Context, key abstractions.Item, fields abstractions.Fields) (abstractions.Item, error) {
	return t.item(func() (abstractions.Item, error) { return t.inner.Update(ctx, key, fields) })
}

func (t *BreakerTable) Delete(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	return t.item(func() (abstractions.Item, error) { return t.inner.Delete(ctx, key) })
}

func (t *BreakerTable) QueryByPartition(ctx context.Context, partitionValue interface{}, filters ...abstractions.Filter) ([]abstractions.Item, error) {
	return t.items(func() ([]abstractions.Item, error) {
		return t.inner.QueryByPartition(ctx, partitionValue, filters...)
	})
}

func (t *BreakerTable) item(fn func() (abstractions.Item, error)) (abstractions.Item, error) {
	var out abstractions.Item
	_, err := t.cb.Execute(func() (interface{}, error) {
		var err error
		out, err = fn()
		return nil, err
	})
	if err != nil {
		return nil, t.translate(err)
	}
	return out, nil
}

func (t *BreakerTable) items(fn func() ([]abstractions.Item, error)) ([]abstractions.Item, error) {
	var out []abstractions.Item
	_, err := t.cb.Execute(func() (interface{}, error) {
		var err error
		out, err = fn()
		return nil, err
	})
	if err != nil {
		return nil, t.translate(err)
	}
	return out, nil
}

func (t *BreakerTable) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewUnavailableError(t.inner.Name()).WithCause(err)
	}
	return err
}
