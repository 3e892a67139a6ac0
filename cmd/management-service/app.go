package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"

	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/decision"
	"herald/internal/history"
	"herald/internal/logger"
	"herald/internal/management"
	"herald/internal/preferences"
	"herald/internal/templates"
	"herald/pkg/bootstrap"
	"herald/pkg/cel"
	"herald/pkg/health"
	"herald/pkg/metrics"
	"herald/pkg/middleware"
	"herald/pkg/ratelimit"
	"herald/pkg/tracing"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const serviceName = "management-service"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	mongoClient    *mongo.Client
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Database.MongoDB.URI == "" {
		return nil
	}
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "MongoDB connection failed, preference endpoints disabled", "error", err)
		return nil
	}
	a.mongoClient = mongoClient
	return nil
}

func (a *App) preferenceRepository() preferences.Repository {
	if a.mongoClient == nil {
		return nil
	}
	mongoCfg := a.Config.Database.MongoDB
	dbName := mongoCfg.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	repo := preferences.NewRepository(a.mongoClient.Database(dbName), mongoCfg.PreferencesCollection)
	if a.Config.CircuitBreaker.Enabled {
		repo = preferences.NewCircuitBreakerRepository(repo, a.Config.CircuitBreaker)
	}
	return repo
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(management.AuditContextMiddleware())
	if origins := a.Config.Management.CORSOrigins; len(origins) > 0 {
		router.Use(middleware.CORSMiddleware(origins))
	}

	if a.Config.Management.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(a.Config.Management.RateLimit)
		router.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	var historyRepo history.Repository = history.NewRepository(a.db)
	if a.Config.CircuitBreaker.Enabled {
		historyRepo = history.NewCircuitBreakerRepository(historyRepo, a.Config.CircuitBreaker)
	}

	opts := []management.ServiceOption{
		management.WithVersioning(management.NewVersioningRepository(a.db)),
		management.WithDeliveries(historyRepo),
	}

	var prefStore decision.PreferenceStore = emptyPreferences{}
	if repo := a.preferenceRepository(); repo != nil {
		opts = append(opts, management.WithPreferences(repo))
		prefStore = repo
	}

	if a.Config.Broker.Kafka.ConfigUpdateTopic != "" {
		if err := a.InitBroker(serviceName, false); err != nil {
			a.Logger.WarnwCtx(ctx, "Failed to create config event producer, config events will be disabled", "error", err)
		} else {
			opts = append(opts, management.WithConfigEvents(
				management.NewConfigEventProducer(a.Producer, a.Config.Broker.Kafka.ConfigUpdateTopic),
			))
			a.Logger.InfowCtx(ctx, "Config event producer initialized")
		}
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create condition evaluator: %w", err)
	}
	opts = append(opts, management.WithEvaluation(decision.NewMerger([]decision.Filter{
		decision.NewCriteriaFilter(),
		decision.NewConditionFilter(evaluator),
		decision.NewSendRateFilter(historyRepo, nil),
		decision.NewPreferenceFilter(historyRepo, prefStore, nil),
	}, decision.WithConcurrency(a.Config.Dispatch.Concurrency))))

	svc := management.NewService(templates.NewRepository(a.db), a.Logger, opts...)

	management.NewHandler(svc, a.Logger).RegisterRoutes(router)
	management.NewPreferencesHandler(svc, a.Logger).RegisterPreferencesRoutes(router)
	management.NewDeliveryHandler(svc, a.Logger).RegisterDeliveryRoutes(router)

	metrics.RegisterManagementMetrics()
	metrics.RegisterCircuitBreakerMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

type emptyPreferences struct{}

func (emptyPreferences) GetPreferences(context.Context, string, string) (*decision.RecipientPreferences, error) {
	return nil, nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down server")

	additionalShutdown := func(ctx context.Context) []error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(shutdownCtx, nil, a.db, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
