package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// SchemaClient is the part of the DynamoDB API needed to bootstrap tables.
type SchemaClient interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// TableDefinition describes a table with a hash key and a range key.
type TableDefinition struct {
	Name             string
	PartitionKey     string
	PartitionKeyType types.ScalarAttributeType
	SortKey          string
	SortKeyType      types.ScalarAttributeType
}

// SitesTableDefinition keys sites by (companyId, productionSiteId), both numbers.
func SitesTableDefinition(name string) TableDefinition {
	return TableDefinition{
		Name:             name,
		PartitionKey:     "companyId",
		PartitionKeyType: types.ScalarAttributeTypeN,
		SortKey:          "productionSiteId",
		SortKeyType:      types.ScalarAttributeTypeN,
	}
}

// ProductionTableDefinition keys records by (pk, sk), both strings.
func ProductionTableDefinition(name string) TableDefinition {
	return TableDefinition{
		Name:             name,
		PartitionKey:     "pk",
		PartitionKeyType: types.ScalarAttributeTypeS,
		SortKey:          "sk",
		SortKeyType:      types.ScalarAttributeTypeS,
	}
}

// EnsureTables creates any missing table and waits for it to become active.
// Used for local development against DynamoDB Local.
func EnsureTables(ctx context.Context, client SchemaClient, logger *zap.Logger, defs ...TableDefinition) error {
	for _, def := range defs {
		_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(def.Name)})
		if err == nil {
			logger.Debug("Table exists", zap.String("table", def.Name))
			continue
		}

		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to describe table %s: %w", def.Name, err)
		}

		logger.Info("Creating table", zap.String("table", def.Name))
		_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName:   aws.String(def.Name),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(def.PartitionKey), AttributeType: def.PartitionKeyType},
				{AttributeName: aws.String(def.SortKey), AttributeType: def.SortKeyType},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(def.PartitionKey), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(def.SortKey), KeyType: types.KeyTypeRange},
			},
		})
		if err != nil {
			var inUse *types.ResourceInUseException
			if errors.As(err, &inUse) {
				continue
			}
			return fmt.Errorf("failed to create table %s: %w", def.Name, err)
		}

		waiter := dynamodb.NewTableExistsWaiter(client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(def.Name)}, 2*time.Minute); err != nil {
			return fmt.Errorf("table %s did not become active: %w", def.Name, err)
		}
	}
	return nil
}
