// Package decorators wraps an abstractions.Table with cross-cutting
// behavior: logging, metrics and tracing, and a circuit breaker. Each
// decorator keeps the Table contract so they can be stacked in any order.
package decorators

import (
	"context"
	"time"

	"prodtracker-backend/infrastructure/persistence/abstractions"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"go.uber.org/zap"
)

// LoggingConfig controls what the logging decorator records
type LoggingConfig struct {
	LogPayloads   bool          // Log item bodies on mutations
	SlowThreshold time.Duration // Log a warning for operations slower than this
}

// DefaultLoggingConfig logs payloads and warns after one second.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogPayloads:   true,
		SlowThreshold: time.Second,
	}
}

// LoggingTable logs every operation at debug level and every failure at
// error level before returning it unchanged.
type LoggingTable struct {
	inner  abstractions.Table
	logger *zap.Logger
	config LoggingConfig
}

var _ abstractions.Table = (*LoggingTable)(nil)

// NewLoggingTable creates a logging decorator for a table.
func NewLoggingTable(inner abstractions.Table, logger *zap.Logger, config LoggingConfig) *LoggingTable {
	return &LoggingTable{
		inner:  inner,
		logger: logger.Named("store"),
		config: config,
	}
}

func (t *LoggingTable) Name() string { return t.inner.Name() }

func (t *LoggingTable) Schema() abstractions.KeySchema { return t.inner.Schema() }

func (t *LoggingTable) ScanAll(ctx context.Context) ([]abstractions.Item, error) {
	start := time.Now()
	items, err := t.inner.ScanAll(ctx)
	t.log("scan", start, err, zap.Int("count", len(items)))
	return items, err
}

func (t *LoggingTable) GetByKey(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	start := time.Now()
	item, err := t.inner.GetByKey(ctx, key)
	t.log("get", start, err, zap.Any("key", plain(key)), zap.Bool("found", item != nil))
	return item, err
}

func (t *LoggingTable) Put(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	start := time.Now()
	out, err := t.inner.Put(ctx, item)
	t.log("put", start, err, t.payload(item)...)
	return out, err
}

func (t *LoggingTable) Create(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	start := time.Now()
	out, err := t.inner.Create(ctx, item)
	t.log("create", start, err, t.payload(item)...)
	return out, err
}

func (t *LoggingTable) Update(ctx context.Context, key abstractions.Item, fields abstractions.Fields) (abstractions.Item, error) {
	start := time.Now()
	out, err := t.inner.Update(ctx, key, fields)

	fieldsLog := []zap.Field{zap.Any("key", plain(key))}
	if t.config.LogPayloads {
		fieldsLog = append(fieldsLog, zap.Any("fields", map[string]interface{}(fields)))
	}
	t.log("update", start, err, fieldsLog...)
	return out, err
}

func (t *LoggingTable) Delete(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	start := time.Now()
	old, err := t.inner.Delete(ctx, key)
	t.log("delete", start, err, zap.Any("key", plain(key)), zap.Bool("existed", old != nil))
	return old, err
}

func (t *LoggingTable) QueryByPartition(ctx context.Context, partitionValue interface{}, filters ...abstractions.Filter) ([]abstractions.Item, error) {
	start := time.Now()
	items, err := t.inner.QueryByPartition(ctx, partitionValue, filters...)
	t.log("query", start, err,
		zap.Any("partition", partitionValue),
		zap.Int("filters", len(filters)),
		zap.Int("count", len(items)),
	)
	return items, err
}

func (t *LoggingTable) payload(item abstractions.Item) []zap.Field {
	schema := t.inner.Schema()
	key := abstractions.Item{}
	for _, name := range []string{schema.PartitionKey, schema.SortKey} {
		if av, ok := item[name]; ok && name != "" {
			key[name] = av
		}
	}

	fields := []zap.Field{zap.Any("key", plain(key))}
	if t.config.LogPayloads {
		fields = append(fields, zap.Any("item", plain(item)))
	}
	return fields
}

func (t *LoggingTable) log(op string, start time.Time, err error, extra ...zap.Field) {
	duration := time.Since(start)
	fields := append([]zap.Field{
		zap.String("operation", op),
		zap.String("collection", t.inner.Name()),
		zap.Duration("duration", duration),
	}, extra...)

	if err != nil {
		t.logger.Error("store operation failed", append(fields, zap.Error(err))...)
		return
	}
	if t.config.SlowThreshold > 0 && duration > t.config.SlowThreshold {
		t.logger.Warn("slow store operation", fields...)
		return
	}
	t.logger.Debug("store operation", fields...)
}

// plain converts an item to plain Go values for readable log output.
func plain(item abstractions.Item) map[string]interface{} {
	out := make(map[string]interface{}, len(item))
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return map[string]interface{}{"unreadable": err.Error()}
	}
	return out
}
