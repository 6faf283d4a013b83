package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"prodtracker-backend/infrastructure/persistence/abstractions"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table is an in-memory abstractions.Table. It keeps the same contract as
// the DynamoDB table, including conditional create and update, and is
// used for local runs and tests.
type Table struct {
	mu     sync.RWMutex
	name   string
	schema abstractions.KeySchema
	items  map[string]abstractions.Item
}

var _ abstractions.Table = (*Table)(nil)

// NewTable creates an empty in-memory table
func NewTable(name string, schema abstractions.KeySchema) *Table {
	return &Table{
		name:   name,
		schema: schema,
		items:  make(map[string]abstractions.Item),
	}
}

func (t *Table) Name() string { return t.name }

func (t *Table) Schema() abstractions.KeySchema { return t.schema }

// ScanAll returns items ordered by partition key then sort key.
func (t *Table) ScanAll(ctx context.Context) ([]abstractions.Item, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	items := make([]abstractions.Item, 0, len(t.items))
	for _, item := range t.items {
		items = append(items, copyItem(item))
	}
	t.sortItems(items)
	return items, nil
}

func (t *Table) GetByKey(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	id, err := t.keyString(key)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	item, ok := t.items[id]
	if !ok {
		return nil, nil
	}
	return copyItem(item), nil
}

func (t *Table) Put(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	id, err := t.keyString(item)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.items[id] = copyItem(item)
	return copyItem(item), nil
}

func (t *Table) Create(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	id, err := t.keyString(item)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[id]; exists {
		return nil, apperrors.NewConflictError(fmt.Sprintf("item already exists in %s", t.name)).
			WithCode("ALREADY_EXISTS")
	}
	t.items[id] = copyItem(item)
	return copyItem(item), nil
}

func (t *Table) Update(ctx context.Context, key abstractions.Item, fields abstractions.Fields) (abstractions.Item, error) {
	id, err := t.keyString(key)
	if err != nil {
		return nil, err
	}

	fields = fields.Compact()
	values := make(abstractions.Item, len(fields))
	for name, v := range fields {
		if t.schema.IsKeyAttribute(name) {
			return nil, apperrors.NewValidationErrorf("key attribute %s cannot be updated", name)
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, apperrors.NewValidationErrorf("invalid value for %s", name).WithCause(err)
		}
		values[name] = av
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.items[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("item in " + t.name)
	}

	next := copyItem(current)
	for name, av := range values {
		next[name] = av
	}
	t.items[id] = next
	return copyItem(next), nil
}

func (t *Table) Delete(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	id, err := t.keyString(key)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.items[id]
	if !ok {
		return nil, nil
	}
	delete(t.items, id)
	return copyItem(old), nil
}

func (t *Table) QueryByPartition(ctx context.Context, partitionValue interface{}, filters ...abstractions.Filter) ([]abstractions.Item, error) {
	pv, err := attributevalue.Marshal(partitionValue)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid partition value").WithCause(err)
	}
	want := canonical(pv)

	conds := make([]compiledFilter, 0, len(filters))
	for _, f := range filters {
		cf, err := compileFilter(f)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cf)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	items := make([]abstractions.Item, 0)
	for _, item := range t.items {
		if canonical(item[t.schema.PartitionKey]) != want {
			continue
		}
		if !matchesAll(item, conds) {
			continue
		}
		items = append(items, copyItem(item))
	}
	t.sortItems(items)
	return items, nil
}

// Len returns the number of stored items.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

func (t *Table) keyString(item abstractions.Item) (string, error) {
	pk, ok := item[t.schema.PartitionKey]
	if !ok {
		return "", apperrors.NewValidationErrorf("%s is required", t.schema.PartitionKey)
	}
	if t.schema.SortKey == "" {
		return canonical(pk), nil
	}
	sk, ok := item[t.schema.SortKey]
	if !ok {
		return "", apperrors.NewValidationErrorf("%s is required", t.schema.SortKey)
	}
	return canonical(pk) + "|" + canonical(sk), nil
}

func (t *Table) sortItems(items []abstractions.Item) {
	sort.Slice(items, func(i, j int) bool {
		if c := compare(items[i][t.schema.PartitionKey], items[j][t.schema.PartitionKey]); c != 0 {
			return c < 0
		}
		if t.schema.SortKey == "" {
			return false
		}
		return compare(items[i][t.schema.SortKey], items[j][t.schema.SortKey]) < 0
	})
}

type compiledFilter struct {
	field string
	op    abstractions.FilterOperator
	value types.AttributeValue
	text  string
}

func compileFilter(f abstractions.Filter) (compiledFilter, error) {
	cf := compiledFilter{field: f.Field, op: f.Operator}
	switch f.Operator {
	case abstractions.OpEqual, abstractions.OpNotEqual:
		av, err := attributevalue.Marshal(f.Value)
		if err != nil {
			return cf, apperrors.NewValidationErrorf("invalid filter value for %s", f.Field).WithCause(err)
		}
		cf.value = av
	case abstractions.OpContains, abstractions.OpStartsWith:
		s, ok := f.Value.(string)
		if !ok {
			return cf, apperrors.NewValidationErrorf("%s on %s needs a string", f.Operator, f.Field)
		}
		cf.text = s
	default:
		return cf, apperrors.NewValidationErrorf("unsupported filter operator %q", f.Operator)
	}
	return cf, nil
}

func matchesAll(item abstractions.Item, conds []compiledFilter) bool {
	for _, c := range conds {
		av, present := item[c.field]
		switch c.op {
		case abstractions.OpEqual:
			if !present || canonical(av) != canonical(c.value) {
				return false
			}
		case abstractions.OpNotEqual:
			if present && canonical(av) == canonical(c.value) {
				return false
			}
		case abstractions.OpContains:
			s, ok := av.(*types.AttributeValueMemberS)
			if !ok || !strings.Contains(s.Value, c.text) {
				return false
			}
		case abstractions.OpStartsWith:
			s, ok := av.(*types.AttributeValueMemberS)
			if !ok || !strings.HasPrefix(s.Value, c.text) {
				return false
			}
		}
	}
	return true
}

// canonical renders scalar attribute values so that equal values produce
// equal strings, e.g. N "1" and N "1.0".
func canonical(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + v.Value
	case *types.AttributeValueMemberN:
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return "N:" + strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "N:" + v.Value
	case *types.AttributeValueMemberBOOL:
		return "BOOL:" + strconv.FormatBool(v.Value)
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%T:%v", av, av)
	}
}

func compare(a, b types.AttributeValue) int {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		af, aerr := strconv.ParseFloat(an.Value, 64)
		bf, berr := strconv.ParseFloat(bn.Value, 64)
		if aerr == nil && berr == nil {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(canonical(a), canonical(b))
}

func copyItem(item abstractions.Item) abstractions.Item {
	out := make(abstractions.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
