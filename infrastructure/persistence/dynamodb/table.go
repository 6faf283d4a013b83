package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"prodtracker-backend/infrastructure/persistence/abstractions"
	apperrors "prodtracker-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// DBClient is the subset of the DynamoDB API used by Table. The SDK client
// is safe for concurrent use, so one instance is shared by every table.
type DBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Table implements abstractions.Table on one DynamoDB table.
type Table struct {
	client    DBClient
	tableName string
	schema    abstractions.KeySchema
}

var _ abstractions.Table = (*Table)(nil)

// NewTable creates a table bound to client.
func NewTable(client DBClient, tableName string, schema abstractions.KeySchema) *Table {
	return &Table{
		client:    client,
		tableName: tableName,
		schema:    schema,
	}
}

func (t *Table) Name() string { return t.tableName }

func (t *Table) Schema() abstractions.KeySchema { return t.schema }

// ScanAll follows LastEvaluatedKey until the whole table has been read.
func (t *Table) ScanAll(ctx context.Context) ([]abstractions.Item, error) {
	paginator := dynamodb.NewScanPaginator(t.client, &dynamodb.ScanInput{
		TableName:      aws.String(t.tableName),
		ConsistentRead: aws.Bool(true),
	})

	items := make([]abstractions.Item, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, t.storeError("scan", err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (t *Table) GetByKey(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}

	result, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, t.storeError("get", err)
	}
	if len(result.Item) == 0 {
		return nil, nil
	}
	return result.Item, nil
}

func (t *Table) Put(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	if err := t.checkKey(item); err != nil {
		return nil, err
	}

	_, err := t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.tableName),
		Item:      item,
	})
	if err != nil {
		return nil, t.storeError("put", err)
	}
	return item, nil
}

func (t *Table) Create(ctx context.Context, item abstractions.Item) (abstractions.Item, error) {
	if err := t.checkKey(item); err != nil {
		return nil, err
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(t.schema.PartitionKey))).
		Build()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build create condition").WithCause(err)
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(t.tableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, apperrors.NewConflictError(fmt.Sprintf("item already exists in %s", t.tableName)).
				WithCode("ALREADY_EXISTS").
				WithCause(err)
		}
		return nil, t.storeError("create", err)
	}
	return item, nil
}

// Update builds one SET clause per field, in name order, guarded by
// attribute_exists on the partition key.
func (t *Table) Update(ctx context.Context, key abstractions.Item, fields abstractions.Fields) (abstractions.Item, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}

	fields = fields.Compact()
	if len(fields) == 0 {
		item, err := t.GetByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, apperrors.NewNotFoundError("item in " + t.tableName)
		}
		return item, nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if t.schema.IsKeyAttribute(name) {
			return nil, apperrors.NewValidationErrorf("key attribute %s cannot be updated", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	update := expression.Set(expression.Name(names[0]), expression.Value(fields[names[0]]))
	for _, name := range names[1:] {
		update = update.Set(expression.Name(name), expression.Value(fields[name]))
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(t.schema.PartitionKey))).
		Build()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid update fields").WithCause(err)
	}

	result, err := t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, apperrors.NewNotFoundError("item in " + t.tableName)
		}
		return nil, t.storeError("update", err)
	}
	return result.Attributes, nil
}

func (t *Table) Delete(ctx context.Context, key abstractions.Item) (abstractions.Item, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}

	result, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(t.tableName),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, t.storeError("delete", err)
	}
	if len(result.Attributes) == 0 {
		return nil, nil
	}
	return result.Attributes, nil
}

func (t *Table) QueryByPartition(ctx context.Context, partitionValue interface{}, filters ...abstractions.Filter) ([]abstractions.Item, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key(t.schema.PartitionKey).Equal(expression.Value(partitionValue)))

	if len(filters) > 0 {
		cond, err := buildFilter(filters)
		if err != nil {
			return nil, err
		}
		builder = builder.WithFilter(cond)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid query").WithCause(err)
	}

	paginator := dynamodb.NewQueryPaginator(t.client, &dynamodb.QueryInput{
		TableName:                 aws.String(t.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	items := make([]abstractions.Item, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, t.storeError("query", err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func buildFilter(filters []abstractions.Filter) (expression.ConditionBuilder, error) {
	conds := make([]expression.ConditionBuilder, 0, len(filters))
	for _, f := range filters {
		name := expression.Name(f.Field)
		switch f.Operator {
		case abstractions.OpEqual:
			conds = append(conds, name.Equal(expression.Value(f.Value)))
		case abstractions.OpNotEqual:
			conds = append(conds, name.NotEqual(expression.Value(f.Value)))
		case abstractions.OpStartsWith:
			s, ok := f.Value.(string)
			if !ok {
				return expression.ConditionBuilder{}, apperrors.NewValidationErrorf("starts_with on %s needs a string", f.Field)
			}
			conds = append(conds, name.BeginsWith(s))
		case abstractions.OpContains:
			s, ok := f.Value.(string)
			if !ok {
				return expression.ConditionBuilder{}, apperrors.NewValidationErrorf("contains on %s needs a string", f.Field)
			}
			conds = append(conds, name.Contains(s))
		default:
			return expression.ConditionBuilder{}, apperrors.NewValidationErrorf("unsupported filter operator %q", f.Operator)
		}
	}

	if len(conds) == 1 {
		return conds[0], nil
	}
	return expression.And(conds[0], conds[1], conds[2:]...), nil
}

func (t *Table) checkKey(item abstractions.Item) error {
	if _, ok := item[t.schema.PartitionKey]; !ok {
		return apperrors.NewValidationErrorf("%s is required", t.schema.PartitionKey)
	}
	if t.schema.SortKey != "" {
		if _, ok := item[t.schema.SortKey]; !ok {
			return apperrors.NewValidationErrorf("%s is required", t.schema.SortKey)
		}
	}
	return nil
}

// storeError wraps a failed SDK call, recording the API error code when the
// service returned one.
func (t *Table) storeError(op string, err error) error {
	storeErr := apperrors.NewStoreError(op, t.tableName, err)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		storeErr = storeErr.WithCode(apiErr.ErrorCode())
	}
	return storeErr
}
