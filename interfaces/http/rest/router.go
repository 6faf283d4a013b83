package rest

import (
	"net/http"

	"prodtracker-backend/application/ports"
	"prodtracker-backend/interfaces/http/rest/handlers"
	"prodtracker-backend/interfaces/http/rest/middleware"
	apperrors "prodtracker-backend/pkg/errors"
	"prodtracker-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds the HTTP surface options
type RouterConfig struct {
	AllowedOrigins []string
	EnableMetrics  bool
}

// Router creates and configures the HTTP router
type Router struct {
	sites     ports.SiteRepository
	records   ports.ProductionRepository
	publisher ports.EventPublisher
	errors    *apperrors.ErrorHandler
	metrics   *observability.Collector
	logger    *zap.Logger
	config    RouterConfig
}

// NewRouter creates a new router instance. metrics may be nil.
func NewRouter(
	sites ports.SiteRepository,
	records ports.ProductionRepository,
	publisher ports.EventPublisher,
	errorHandler *apperrors.ErrorHandler,
	metrics *observability.Collector,
	logger *zap.Logger,
	config RouterConfig,
) *Router {
	return &Router{
		sites:     sites,
		records:   records,
		publisher: publisher,
		errors:    errorHandler,
		metrics:   metrics,
		logger:    logger,
		config:    config,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.Get("/health", handlers.NewHealthHandler(rt.logger).Health)
	if rt.metrics != nil && rt.config.EnableMetrics {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		r.Route("/production-site", func(r chi.Router) {
			siteHandler := handlers.NewSiteHandler(rt.sites, rt.records, rt.publisher, rt.errors, rt.logger)
			r.Get("/", siteHandler.ListSites)
			r.Post("/", siteHandler.CreateSite)
			r.Get("/{companyId}/{productionSiteId}", siteHandler.GetSite)
			r.Put("/{companyId}/{productionSiteId}", siteHandler.UpdateSite)
			r.Delete("/{companyId}/{productionSiteId}", siteHandler.DeleteSite)
		})

		r.Route("/production-unit", func(r chi.Router) {
			productionHandler := handlers.NewProductionHandler(rt.records, rt.publisher, rt.errors, rt.logger)
			r.Get("/", productionHandler.ListRecords)
			r.Post("/", productionHandler.CreateRecord)
			r.Get("/{companyId}/{productionSiteId}", productionHandler.ListSiteRecords)
			r.Get("/{companyId}/{productionSiteId}/{month}", productionHandler.GetRecord)
			r.Put("/{companyId}/{productionSiteId}/{month}", productionHandler.UpdateRecord)
			r.Delete("/{companyId}/{productionSiteId}/{month}", productionHandler.DeleteRecord)
		})

		r.Get("/dashboard/summary", handlers.NewDashboardHandler(rt.sites, rt.records, rt.errors, rt.logger).GetSummary)
	})

	return router
}
