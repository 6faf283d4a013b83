package di

import (
	"context"
	"fmt"

	"prodtracker-backend/application/ports"
	"prodtracker-backend/infrastructure/config"
	"prodtracker-backend/infrastructure/messaging"
	"prodtracker-backend/infrastructure/messaging/eventbridge"
	"prodtracker-backend/infrastructure/persistence/abstractions"
	"prodtracker-backend/infrastructure/persistence/decorators"
	"prodtracker-backend/infrastructure/persistence/dynamodb"
	"prodtracker-backend/infrastructure/persistence/memory"
	"prodtracker-backend/infrastructure/persistence/repository"
	"prodtracker-backend/interfaces/http/rest"
	apperrors "prodtracker-backend/pkg/errors"
	"prodtracker-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "prodtracker-backend"

// SitesTable is the generic table holding production sites
type SitesTable abstractions.Table

// ProductionTable is the generic table holding monthly records
type ProductionTable abstractions.Table

// ProvideLogLevel parses LOG_LEVEL into a level the config watcher can change
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName)), nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("prodtracker")
}

// ProvideTracerProvider starts OTLP export when tracing is enabled. It
// returns nil otherwise; a nil provider hands out a noop tracer.
func ProvideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, error) {
	if !cfg.EnableTracing {
		return nil, nil
	}
	tp, err := observability.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	logger.Info("Tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	return tp, nil
}

// ProvideTracer returns the tracer used for store spans
func ProvideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// ProvideAWSConfig creates AWS configuration. Credentials come from the
// SDK default chain, which reads AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at
// DYNAMODB_ENDPOINT when set (DynamoDB Local)
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideSitesTable creates the decorated sites table
func ProvideSitesTable(
	cfg *config.Config,
	client *awsdynamodb.Client,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) SitesTable {
	return buildTable(cfg, client, cfg.SitesTable, repository.SiteSchema, metrics, tracer, logger)
}

// ProvideProductionTable creates the decorated production records table
func ProvideProductionTable(
	cfg *config.Config,
	client *awsdynamodb.Client,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) ProductionTable {
	return buildTable(cfg, client, cfg.ProductionTable, repository.ProductionSchema, metrics, tracer, logger)
}

// buildTable stacks logging over instrumentation over the breaker. The
// breaker only guards DynamoDB; the memory store cannot fail that way.
func buildTable(
	cfg *config.Config,
	client *awsdynamodb.Client,
	name string,
	schema abstractions.KeySchema,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) abstractions.Table {
	var table abstractions.Table
	if cfg.StoreDriver == config.StoreMemory {
		table = memory.NewTable(name, schema)
	} else {
		table = dynamodb.NewTable(client, name, schema)
		table = decorators.NewBreakerTable(table, decorators.BreakerConfig{
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MinRequests:      cfg.Breaker.MinRequests,
		}, logger, metrics)
	}

	table = decorators.NewInstrumentedTable(table, metrics, tracer)

	logCfg := decorators.DefaultLoggingConfig()
	logCfg.LogPayloads = !cfg.IsProduction()
	return decorators.NewLoggingTable(table, logger, logCfg)
}

// ProvideSiteRepository creates the site repository
func ProvideSiteRepository(table SitesTable, logger *zap.Logger) ports.SiteRepository {
	return repository.NewSiteRepository(table, logger)
}

// ProvideProductionRepository creates the production records repository
func ProvideProductionRepository(table ProductionTable, logger *zap.Logger) ports.ProductionRepository {
	return repository.NewProductionRepository(table, logger)
}

// ProvideEventPublisher publishes to EventBridge when EVENT_BUS_NAME is set
// and drops events otherwise
func ProvideEventPublisher(
	cfg *config.Config,
	client *awseventbridge.Client,
	metrics *observability.Collector,
	logger *zap.Logger,
) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return messaging.NewNoopPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, metrics, logger)
}

// ProvideErrorHandler creates the HTTP error handler. Outside production
// the cause of 5xx errors is returned to the client.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *apperrors.ErrorHandler {
	return apperrors.NewErrorHandler(logger, !cfg.IsProduction())
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	sites ports.SiteRepository,
	records ports.ProductionRepository,
	publisher ports.EventPublisher,
	errorHandler *apperrors.ErrorHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(sites, records, publisher, errorHandler, metrics, logger, rest.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins(),
		EnableMetrics:  cfg.EnableMetrics,
	})
}
