package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"herald/internal/broker"
	"herald/internal/config"
	"herald/internal/constants"
	"herald/internal/decision"
	"herald/internal/dispatch"
	"herald/internal/history"
	"herald/internal/idempotency"
	"herald/internal/logger"
	"herald/internal/preferences"
	"herald/internal/templates"
	"herald/pkg/bootstrap"
	"herald/pkg/cel"
	"herald/pkg/clock"
	"herald/pkg/health"
	"herald/pkg/logging"
	"herald/pkg/metrics"
	"herald/pkg/models"
	"herald/pkg/tracing"
)

const serviceName = "dispatch-service"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	mongoClient    *mongo.Client
	queueClient    *asynq.Client
	queueServer    *asynq.Server
	queueMux       *asynq.ServeMux
	templates      *templates.Service
	prefCache      *preferences.CachedRepository
	service        *dispatch.Service
	sweeper        *dispatch.Sweeper
	tracerProvider *tracing.TracerProvider
	server         *http.Server
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
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(serviceName, true); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterDispatchMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	if a.Config.Database.MongoDB.URI == "" {
		a.Logger.WarnwCtx(ctx, "MongoDB not configured, every recipient is treated as opted out")
		return nil
	}
	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient
	return nil
}

func (a *App) initService(ctx context.Context) error {
	cbCfg := a.Config.CircuitBreaker

	var historyRepo history.Repository = history.NewRepository(a.db)
	if cbCfg.Enabled {
		historyRepo = history.NewCircuitBreakerRepository(historyRepo, cbCfg)
	}

	templateRepo := templates.NewRepository(a.db)
	a.templates = templates.NewService(templateRepo, a.Config.Templates, a.Logger)
	if err := a.templates.Load(ctx); err != nil {
		a.Logger.WarnwCtx(logging.WithServiceName(ctx, serviceName), "Failed to load initial templates", "error", err)
	}

	prefStore := a.initPreferences()

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	merger := decision.NewMerger([]decision.Filter{
		decision.NewCriteriaFilter(),
		decision.NewConditionFilter(evaluator),
		decision.NewSendRateFilter(historyRepo, nil),
		decision.NewPreferenceFilter(historyRepo, prefStore, nil),
	},
		decision.WithConcurrency(a.Config.Dispatch.Concurrency),
		decision.WithObserver(dispatch.MetricsObserver),
	)

	outputTopic := a.Config.Broker.Kafka.OutputTopic
	if outputTopic == "" {
		outputTopic = constants.DefaultOutputTopic
	}

	opts := []dispatch.Option{
		dispatch.WithPreferences(prefStore),
		dispatch.WithPublisher(a.Producer, outputTopic),
	}

	if a.Config.Idempotency.Enabled {
		var idemRepo idempotency.Repository = idempotency.NewRepository(a.redis)
		if cbCfg.Enabled {
			idemRepo = idempotency.NewCircuitBreakerRepository(idemRepo, cbCfg)
		}
		opts = append(opts, dispatch.WithGuard(idempotency.NewService(idemRepo, a.Config.Idempotency, a.Logger)))
	}

	var scheduler *dispatch.AsynqScheduler
	if a.Config.Queue.Enabled {
		a.queueClient = a.dbConnector.InitQueueClient()
		scheduler = dispatch.NewAsynqScheduler(a.queueClient, a.Config.Queue)
		opts = append(opts, dispatch.WithScheduler(scheduler))
	}

	a.service = dispatch.NewService(a.templates, merger, historyRepo, a.Config.Dispatch, a.Logger, opts...)

	if scheduler != nil {
		releaser := dispatch.NewReleaser(a.service, historyRepo, a.templates)
		a.queueServer = dispatch.NewQueueServer(a.Config.Database.Redis, a.Config.Queue, a.Logger)
		a.queueMux = dispatch.NewQueueMux(releaser)

		if a.Config.Dispatch.Sweep.Enabled {
			a.sweeper = dispatch.NewSweeper(historyRepo, scheduler, a.Config.Dispatch.Sweep, clock.Real(), a.Logger)
		}
	}
	return nil
}

// initPreferences builds Mongo, then the breaker, then the Redis cache.
func (a *App) initPreferences() decision.PreferenceStore {
	if a.mongoClient == nil {
		return noPreferences{}
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

	ttl := time.Duration(a.Config.Preferences.CacheTTLSeconds) * time.Second
	a.prefCache = preferences.NewCachedRepository(repo, a.redis, ttl, a.Logger)
	return a.prefCache
}

type noPreferences struct{}

func (noPreferences) GetPreferences(context.Context, string, string) (*decision.RecipientPreferences, error) {
	return nil, nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewRedisChecker(a.redis))
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
}

func (a *App) Run(ctx context.Context) error {
	if a.queueServer != nil {
		if err := a.queueServer.Start(a.queueMux); err != nil {
			return fmt.Errorf("failed to start queue server: %w", err)
		}
		a.Logger.InfowCtx(ctx, "Release queue worker started", "queue", a.Config.Queue.Name)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	a.startConfigConsumer(gCtx, g)

	g.Go(func() error {
		return a.templates.StartReloader(gCtx)
	})

	if a.sweeper != nil {
		g.Go(func() error {
			return a.sweeper.Run(gCtx)
		})
	}

	handler := dispatch.NewHandler(a.service, a.Logger)
	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultInputTopic
	}
	g.Go(func() error {
		return a.Consumer.Consume(gCtx, inputTopic, handler.HandleMessage)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// startConfigConsumer follows template and preference changes published by
// the management service.
func (a *App) startConfigConsumer(ctx context.Context, g *errgroup.Group) {
	topic := a.Config.Broker.Kafka.ConfigUpdateTopic
	if topic == "" {
		return
	}

	configConsumer, err := broker.NewConsumer(a.Config.Broker, a.Logger)
	if err != nil {
		a.Logger.WarnwCtx(logging.WithServiceName(ctx, serviceName), "Failed to create config event consumer, event-driven reload disabled",
			"error", err,
		)
		return
	}
	configConsumer.SetServiceName(serviceName)

	handlers := []broker.HandlerFunc{templates.NewHandler(a.templates, a.Logger).HandleConfigUpdateEvent}
	if a.prefCache != nil {
		handlers = append(handlers, preferences.NewHandler(a.prefCache, a.Logger).HandleConfigUpdateEvent)
	}

	g.Go(func() error {
		defer configConsumer.Close()
		a.Logger.InfowCtx(ctx, "Starting config update event consumer", "topic", topic)
		return configConsumer.Consume(ctx, topic, func(cCtx context.Context, msg models.MessageEnvelope) error {
			for _, h := range handlers {
				if err := h(cCtx, msg); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down dispatch service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.queueServer != nil {
			a.queueServer.Shutdown()
		}

		if a.queueClient != nil {
			if err := a.queueClient.Close(); err != nil {
				errs = append(errs, fmt.Errorf("queue client close error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
