package abstractions

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is one stored document in its attribute value form.
type Item = map[string]types.AttributeValue

// Fields maps attribute names to new plain Go values for a partial update.
// Nil values are treated as absent and are not written.
type Fields map[string]interface{}

// KeySchema names the key attributes of a table.
type KeySchema struct {
	PartitionKey string
	SortKey      string
}

// IsKeyAttribute reports whether name is part of the table key.
func (k KeySchema) IsKeyAttribute(name string) bool {
	return name == k.PartitionKey || (k.SortKey != "" && name == k.SortKey)
}

// Table is a store-agnostic view of one named collection whose items are
// addressed by a partition key and an optional sort key.
//
// Failures of the underlying store come back as StoreError. Keyed reads
// return (nil, nil) when the item is absent.
type Table interface {
	// Name returns the collection name used in logs and errors
	Name() string

	// Schema returns the key attributes of the collection
	Schema() KeySchema

	// ScanAll returns every item. An empty collection yields an empty slice.
	ScanAll(ctx context.Context) ([]Item, error)

	// GetByKey returns the item at key, or nil when it does not exist
	GetByKey(ctx context.Context, key Item) (Item, error)

	// Put writes item unconditionally, overwriting any previous value
	Put(ctx context.Context, item Item) (Item, error)

	// Create writes item only if no item exists at its key, otherwise
	// it fails with ConflictError
	Create(ctx context.Context, item Item) (Item, error)

	// Update sets the given fields on an existing item and returns the
	// whole item after the update. It fails with NotFoundError when the
	// key does not exist. Key attributes cannot be updated.
	Update(ctx context.Context, key Item, fields Fields) (Item, error)

	// Delete removes the item at key and returns its previous value, or nil
	Delete(ctx context.Context, key Item) (Item, error)

	// QueryByPartition returns all items sharing a partition key value,
	// narrowed by every filter given, in sort key order
	QueryByPartition(ctx context.Context, partitionValue interface{}, filters ...Filter) ([]Item, error)
}

// Filter represents a query filter condition
type Filter struct {
	Field    string
	Operator FilterOperator
	Value    interface{}
}

// FilterOperator defines the type of comparison
type FilterOperator string

const (
	OpEqual      FilterOperator = "eq"
	OpNotEqual   FilterOperator = "ne"
	OpContains   FilterOperator = "contains"
	OpStartsWith FilterOperator = "starts_with"
)

// Compact returns a copy of f without nil values.
func (f Fields) Compact() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
