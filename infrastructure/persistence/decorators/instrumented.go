package decorators

import (
	"context"
	"time"

	"prodtracker-backend/infrastructure/persistence/abstractions"
	"prodtracker-backend/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedTable records a Prometheus sample and an OpenTelemetry span
// for every table operation.
type InstrumentedTable struct {
	inner   abstractions.Table
	metrics *observability.Collector
	tracer  trace.Tracer
}

var _ abstractions.Table = (*InstrumentedTable)(nil)

// NewInstrumentedTable wraps inner. Either metrics or tracer may be nil.
func NewInstrumentedTable(inner abstractions.Table, metrics *observability.Collector, tracer trace.Tracer) *InstrumentedTable {
	return &InstrumentedTable{inner: inner, metrics: metrics, tracer: tracer}
}

func (t *InstrumentedTable) Name() string { return t.inner.Name() }

func (t *InstrumentedTable) Schema() abstractions.KeySchema { return t.inner.Schema() }

func (t *InstrumentedTable) ScanAll(ctx context.Context) ([]abstractions.Item, error) {
	ctx, done := t.start(ctx, "scan")
	items, err := t.inner.ScanAll(ctx)
	done(err, attribute.Int("store.items", len(items)))
	return items, err
}

func (t *InstrumentedTable) GetByKey(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	ctx, done := t.start(ctx, "get")
	item, err := t.inner.GetByKey(ctx, key)
	done(err, attribute.Bool("store.found", item != nil))
	return item, err
}

func (t *InstrumentedTable) Put(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	ctx, done := t.start(ctx, "put")
	out, err := t.inner.Put(ctx, item)
	done(err)
	return out, err
}

func (t *InstrumentedTable) Create(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	ctx, done := t.start(ctx, "create")
	out, err := t.inner.Create(ctx, item)
	done(err)
	return out, err
}

func (t *InstrumentedTable) Update(ctx context.Context, key abstractions.Item, fields abstractions.Fields) (abstractions.Item, error) {
	ctx, done := t.start(ctx, "update")
	out, err := t.inner.Update(ctx, key, fields)
	done(err, attribute.Int("store.fields", len(fields)))
	return out, err
}

func (t *InstrumentedTable) Delete(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	ctx, done := t.start(ctx, "delete")
	old, err := t.inner.Delete(ctx, key)
	done(err, attribute.Bool("store.existed", old != nil))
	return old, err
}

func (t *InstrumentedTable) QueryByPartition(ctx context.Context, partitionValue interface{}, filters ...abstractions.Filter) ([]abstractions.Item, error) {
	ctx, done := t.start(ctx, "query")
	items, err := t.inner.QueryByPartition(ctx, partitionValue, filters...)
	done(err, attribute.Int("store.items", len(items)))
	return items, err
}

func (t *InstrumentedTable) start(ctx context.Context, op string) (context.Context, func(error, ...attribute.KeyValue)) {
	begin := time.Now()

	var span trace.Span
	if t.tracer != nil {
		ctx, span = t.tracer.Start(ctx, "store."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", "dynamodb"),
				attribute.String("db.collection", t.inner.Name()),
				attribute.String("db.operation", op),
			),
		)
	}

	return ctx, func(err error, attrs ...attribute.KeyValue) {
		if t.metrics != nil {
			t.metrics.ObserveStore(op, t.inner.Name(), err, time.Since(begin))
		}
		if span == nil {
			return
		}
		span.SetAttributes(attrs...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
