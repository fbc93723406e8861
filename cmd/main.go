package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/Rowan-T/clover/config"
	"github.com/Rowan-T/clover/internal/repositories/discoveryanchor"
	"github.com/Rowan-T/clover/internal/repositories/matchrecord"
	"github.com/Rowan-T/clover/internal/repositories/narrativeprofile"
	"github.com/Rowan-T/clover/pkg/cache"
	"github.com/Rowan-T/clover/pkg/database"
	"github.com/Rowan-T/clover/pkg/discovery"
	"github.com/Rowan-T/clover/pkg/events"
	"github.com/Rowan-T/clover/pkg/httpclient"
	"github.com/Rowan-T/clover/pkg/logging"
	"github.com/Rowan-T/clover/pkg/matchview"
	"github.com/Rowan-T/clover/pkg/middleware"
	"github.com/Rowan-T/clover/pkg/narrative"
	"github.com/Rowan-T/clover/pkg/places"
	"github.com/Rowan-T/clover/pkg/redis"
	"github.com/Rowan-T/clover/pkg/routes/health"
	"github.com/Rowan-T/clover/pkg/routes/matches"
	"github.com/Rowan-T/clover/pkg/routes/profiles"
	"github.com/Rowan-T/clover/pkg/routes/view"
	"github.com/Rowan-T/clover/pkg/scheduler"
	"github.com/Rowan-T/clover/pkg/startup"
	"github.com/Rowan-T/clover/pkg/tracing"
	"github.com/Rowan-T/clover/pkg/tracing/exporters"
)

const version = "1.0.0"

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		fmt.Printf("failed to read config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		AppName: cfg.AppName,
		Level:   cfg.LogLevel,
		Pretty:  cfg.PrettyLogs,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			logger.WithError(err).Fatal("Failed to set up tracing")
		}
		defer shutdown(context.Background())
	}

	// Infrastructure comes up through the startup manager so transient
	// connection failures retry with backoff instead of crashing the pod.
	var (
		db          database.DB
		sqlxDB      *sqlx.DB
		redisClient *redis.Client
	)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&startup.Dependency{
		Name: "postgres",
		StartFn: func(ctx context.Context) error {
			var err error
			db, sqlxDB, err = database.Connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.Migrate(cfg.DatabaseName, sqlxDB)
		},
		StopFn: func(ctx context.Context) error {
			return sqlxDB.Close()
		},
	})
	boot.AddDependency(&startup.Dependency{
		Name: "redis",
		Deps: []string{"postgres"},
		StartFn: func(ctx context.Context) error {
			var err error
			redisClient, err = redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			return err
		},
		StopFn: func(ctx context.Context) error {
			return redisClient.Close()
		},
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Startup failed")
	}
	defer boot.Stop(context.Background())

	// Kafka
	producer := events.NewProducer(events.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaMatchEventsTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()
	emitter := events.NewEmitter(producer, logger)

	// Repositories
	matchRepo := matchrecord.NewRepository(db, logger)
	narrativeRepo := narrativeprofile.NewRepository(db, logger)
	anchorRepo := discoveryanchor.NewRepository(db, logger)

	// External collaborators
	placesHTTP := httpclient.NewClient(httpclient.Config{Timeout: cfg.PlacesRequestTimeout}, logger)
	placesClient := places.NewClient(places.Config{
		BaseURL: cfg.PlacesBaseURL,
		APIKey:  cfg.PlacesAPIKey,
	}, placesHTTP, logger)

	textGenHTTP := httpclient.NewClient(httpclient.Config{Timeout: cfg.TextGenRequestTimeout}, logger)
	var generator narrative.Generator
	if cfg.TextGenBaseURL != "" {
		generator = narrative.NewHTTPGenerator(narrative.Config{
			BaseURL: cfg.TextGenBaseURL,
			APIKey:  cfg.TextGenAPIKey,
			Model:   cfg.TextGenModel,
		}, textGenHTTP, logger)
	}
	synthesizer := narrative.NewSynthesizer(generator, logger)

	// Core services
	snapshots := cache.NewSnapshotCache(redisClient, cfg.SnapshotCacheTTL, logger)
	engine := discovery.NewEngine(placesClient, matchRepo, anchorRepo, emitter, discovery.Config{
		MaxResults: cfg.DiscoveryMaxResults,
		MaxTerms:   cfg.DiscoveryMaxTerms,
	}, logger)

	subscriber := events.NewSubscriber(events.SubscriberConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaMatchEventsTopic,
		GroupPrefix: cfg.KafkaConsumerGroup,
	}, logger)
	viewManager := matchview.NewManager(matchRepo, snapshots, func(ctx context.Context, subjectID string) (matchview.Subscription, error) {
		return subscriber.Subscribe(ctx, subjectID)
	}, matchview.Config{
		PageSize:       cfg.ViewPageSize,
		DebounceWindow: cfg.ViewDebounce,
		RefreshTimeout: cfg.ViewFetchTimeout,
	}, logger)
	defer viewManager.Close()

	// Scheduled re-discovery
	if cfg.DiscoveryRefreshEnabled {
		rediscovery := scheduler.New(engine, anchorRepo, narrativeRepo, scheduler.Config{
			CronSpec: cfg.DiscoveryRefreshCron,
			MaxAge:   cfg.DiscoveryRefreshMaxAge,
		}, logger)
		if err := rediscovery.Start(ctx); err != nil {
			logger.WithError(err).Fatal("Failed to start re-discovery scheduler")
		}
		defer rediscovery.Stop()
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes
	e.Validator = &requestValidator{validate: validator.New()}
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	if cfg.TracingEnabled {
		e.Use(otelecho.Middleware(cfg.AppName))
	}
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(sqlxDB, redisClient, version)
	checker.RegisterRoutes(e)

	subjects := e.Group("/api/v1/subjects/:subjectId")
	profiles.NewHandler(synthesizer, narrativeRepo, logger).Register(subjects)
	matches.NewHandler(engine, matchRepo, narrativeRepo, snapshots, emitter, cfg.ViewPageSize, logger).Register(subjects)
	view.NewHandler(viewManager, logger).Register(subjects)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Infof("Starting server on %s", addr)
		checker.SetReady(true)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
}

func setupTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return provider.Shutdown, nil
}
