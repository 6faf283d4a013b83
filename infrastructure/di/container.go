package di

import (
	"context"
	"net/http"

	"prodtracker-backend/application/ports"
	"prodtracker-backend/infrastructure/config"
	"prodtracker-backend/infrastructure/persistence/dynamodb"
	"prodtracker-backend/interfaces/http/rest"
	"prodtracker-backend/pkg/observability"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	LogLevel       zap.AtomicLevel
	DynamoDB       *awsdynamodb.Client
	SiteRepo       ports.SiteRepository
	ProductionRepo ports.ProductionRepository
	EventPublisher ports.EventPublisher
	Metrics        *observability.Collector
	Tracing        *observability.TracerProvider
	Router         *rest.Router

	watcher *config.Watcher `wire:"-"`
}

// Handler builds the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.Router.Setup()
}

// EnsureTables creates the DynamoDB tables when AUTO_CREATE_TABLES is set.
// It does nothing for the memory store.
func (c *Container) EnsureTables(ctx context.Context) error {
	if !c.Config.AutoCreateTables || c.Config.StoreDriver != config.StoreDynamoDB {
		return nil
	}
	return dynamodb.EnsureTables(ctx, c.DynamoDB, c.Logger,
		dynamodb.SitesTableDefinition(c.Config.SitesTable),
		dynamodb.ProductionTableDefinition(c.Config.ProductionTable),
	)
}

// WatchConfig reloads the log level from the config file on change. It is
// a no-op when no config file was used.
func (c *Container) WatchConfig() error {
	if c.Config.ConfigFile == "" {
		return nil
	}
	w, err := config.NewWatcher(c.Config.ConfigFile, c.Logger)
	if err != nil {
		return err
	}
	w.OnChange(config.LevelUpdater(c.LogLevel, c.Logger))
	w.Start()
	c.watcher = w
	return nil
}

// Shutdown stops background work and flushes telemetry
func (c *Container) Shutdown(ctx context.Context) error {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	// Sync on a console stderr returns EINVAL on Linux; ignore it.
	_ = c.Logger.Sync()
	return c.Tracing.Shutdown(ctx)
}
