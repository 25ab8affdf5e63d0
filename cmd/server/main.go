package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/oliehub/backend/docs"
	appintegration "github.com/oliehub/backend/internal/application/integration"
	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/infrastructure/auth"
	"github.com/oliehub/backend/internal/infrastructure/cache"
	"github.com/oliehub/backend/internal/infrastructure/config"
	"github.com/oliehub/backend/internal/infrastructure/ecommerce/tiny"
	"github.com/oliehub/backend/internal/infrastructure/ecommerce/vnda"
	"github.com/oliehub/backend/internal/infrastructure/event"
	"github.com/oliehub/backend/internal/infrastructure/logger"
	"github.com/oliehub/backend/internal/infrastructure/migration"
	"github.com/oliehub/backend/internal/infrastructure/persistence"
	"github.com/oliehub/backend/internal/infrastructure/scheduler"
	"github.com/oliehub/backend/internal/infrastructure/storage"
	"github.com/oliehub/backend/internal/infrastructure/telemetry"
	"github.com/oliehub/backend/internal/infrastructure/validation"
	"github.com/oliehub/backend/internal/interfaces/http/handler"
	"github.com/oliehub/backend/internal/interfaces/http/middleware"
	"github.com/oliehub/backend/internal/interfaces/http/router"
	"github.com/oliehub/backend/migrations"
)

//	@title			OlieHub Sync API
//	@version		1.0
//	@description	Order, product and customer reconciliation between the Tiny ERP and the VNDA storefront.

//	@host		localhost:8080
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The OTLP log pipeline must exist before the logger so zap can be bridged into it
	bootLog, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize OTEL logs", zap.Error(err))
	}

	var extra []zapcore.Core
	if logsProvider.IsEnabled() {
		extra = append(extra, logsProvider.Core(zapcore.InfoLevel))
	}
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, extra...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting OlieHub sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	dbOpts := []persistence.Option{persistence.WithLogger(gormLog)}
	if cfg.Database.AutoMigrate && cfg.Database.Driver == "sqlite" {
		dbOpts = append(dbOpts, persistence.WithAutoMigrate())
	}
	var dbTelemetry *telemetry.DBTelemetry
	if cfg.Telemetry.Enabled {
		dbCfg := telemetry.DefaultDBTelemetryConfig()
		dbCfg.Tracing = cfg.Telemetry.DBTraceEnabled
		dbCfg.LogFullSQL = cfg.App.Env == "development"
		dbCfg.DBName = cfg.Database.DBName
		dbCfg.TracerProvider = tracerProvider.Provider()
		var meter = meterProvider.Meter(telemetry.TracerName)
		if !meterProvider.IsEnabled() {
			meter = nil
		}
		dbTelemetry, err = telemetry.NewDBTelemetry(dbCfg, meter, log)
		switch {
		case errors.Is(err, telemetry.ErrTelemetryDisabled):
			dbTelemetry = nil
		case err != nil:
			log.Fatal("Failed to initialize database telemetry", zap.Error(err))
		default:
			dbOpts = append(dbOpts, persistence.WithPlugin(dbTelemetry))
		}
	}

	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate && cfg.Database.Driver != "sqlite" {
		runMigrations(db, log)
	}
	if dbTelemetry != nil {
		if sqlDB, err := db.DB.DB(); err == nil {
			dbTelemetry.StartPoolStats(ctx, sqlDB)
		}
		defer dbTelemetry.Stop()
	}

	// Repositories and caches
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	resolutionRepo := persistence.NewGormConflictResolutionRepository(db.DB)
	mappingRepo := persistence.NewGormStatusMappingRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)

	stores, err := cache.NewFactory(cfg.Redis, cfg.Sync.LogCacheSize, cache.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to initialize cache stores", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing cache stores", zap.Error(err))
		}
	}()

	// Domain events are published in-process; the audit handler logs them
	bus := event.NewInMemoryEventBus(log)
	auditHandler := event.NewAuditLogHandler(log)
	bus.Subscribe(auditHandler, auditHandler.EventTypes()...)

	gate, err := validation.NewGate()
	if err != nil {
		log.Fatal("Failed to compile validation schemas", zap.Error(err))
	}

	translator := appintegration.NewStatusTranslator(mappingRepo, bus, log)
	if err := translator.Load(ctx); err != nil {
		log.Warn("Status mappings not loaded, using defaults", zap.Error(err))
	}

	// Mapping edits rewrite the stored stage of orders already in production
	stageRefresher := appintegration.NewStageRefresher(orderRepo, translator, log)
	bus.Subscribe(stageRefresher, stageRefresher.EventTypes()...)

	engine := appintegration.NewReconciliationEngine(appintegration.Repositories{
		Orders:      orderRepo,
		Products:    productRepo,
		Customers:   customerRepo,
		Resolutions: resolutionRepo,
	}, translator, bus, log)

	// Upstream adapters. Missing credentials fail the individual operations
	// with a configuration error instead of blocking startup.
	tinyClient := tiny.NewClient(cfg.Tiny, tiny.WithLogger(log))
	vndaClient := vnda.NewClient(cfg.Vnda, vnda.WithLogger(log))
	if !cfg.Tiny.TokenValid() {
		log.Warn("Tiny token missing or malformed; ERP syncs will fail until it is configured")
	}
	if !cfg.Vnda.TokenValid() {
		log.Warn("VNDA token missing or malformed; storefront syncs will fail until it is configured")
	}
	engine.SetPriceSources(tinyClient, vndaClient)

	orchestrator := appintegration.NewSyncOrchestrator(engine, gate, appintegration.Sources{
		Orders:    []integration.OrderSource{tinyClient, vndaClient},
		Products:  []integration.ProductSource{tinyClient, vndaClient},
		Customers: []integration.CustomerSource{tinyClient, vndaClient},
	}, syncLogRepo, stores.SyncLogs, bus, log)

	var syncMetrics *telemetry.SyncMetrics
	if meterProvider.IsEnabled() {
		syncMetrics, err = telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
			Meter:  meterProvider.Meter(telemetry.TracerName),
			Logger: log,
			StateProvider: telemetry.NewGormSyncStateProvider(db.DB, func() int {
				return len(engine.Pending())
			}),
		})
		if err != nil {
			log.Fatal("Failed to initialize sync metrics", zap.Error(err))
		}
		orchestrator.SetSyncRecorder(syncMetrics)
		syncMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		defer syncMetrics.Stop()
	}

	// Background sync. The scheduler always exists so operators can turn
	// it on at runtime; sync.enabled only sets its initial state.
	schedCfg := scheduler.DefaultSyncSchedulerConfig()
	schedCfg.Interval = cfg.Sync.Interval
	schedCfg.Enabled = cfg.Sync.Enabled
	syncScheduler, err := scheduler.NewSyncScheduler(schedCfg, scheduledPass(orchestrator), log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	if !cfg.Sync.Enabled {
		log.Info("Background sync disabled until enabled through the API")
	}

	webhookService := appintegration.NewWebhookService(vnda.NewDecoder(), gate, engine, orchestrator,
		stores.Idempotency, cfg.Sync.WebhookDedupTTL, log)
	auditExport := appintegration.NewAuditExportService(syncLogRepo, archiveStorage(ctx, cfg, log), log)
	diagnostics := appintegration.NewDiagnosticsService(log, tinyClient, vndaClient)
	orderQuery := appintegration.NewOrderQueryService(orderRepo, translator)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engineHTTP := gin.New()
	if err := engineHTTP.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engineHTTP.SetTrustedProxies(nil)
	}
	engineHTTP.Use(
		logger.Recovery(log),
		logger.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(meterProvider.Meter("http.server"), log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORS(cfg.HTTP.CORSAllowOrigins...),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize, handler.VndaWebhookPath),
	)

	verifier := auth.NewJWTVerifier(cfg.Auth)
	jwtAuth := middleware.JWTAuthMiddleware(verifier)

	webhookLimiter := middleware.NewRateLimiter(cfg.HTTP.WebhookRateLimit, cfg.HTTP.WebhookRateBurst, 10*time.Minute)
	go sweepLimiter(ctx, webhookLimiter)

	apiLimiter := middleware.NewRateLimiter(cfg.HTTP.APIRateLimit, cfg.HTTP.APIRateBurst, 10*time.Minute)
	go sweepLimiter(ctx, apiLimiter)

	r := router.NewRouter(engineHTTP, router.WithAPIMiddleware(middleware.RateLimit(apiLimiter), jwtAuth))
	r.RegisterRoot(handler.NewSystemHandler(db, version))
	r.RegisterRoot(handler.NewWebhookHandler(webhookService, cfg.Vnda.WebhookSecret,
		handler.WithWebhookThrottle(webhookLimiter.Allow),
		handler.WithWebhookMaxBody(cfg.HTTP.MaxBodySize)))
	r.Register(handler.NewSyncHandler(orchestrator, syncScheduler))
	r.Register(handler.NewSyncLogHandler(orchestrator, auditExport))
	r.Register(handler.NewStatusMappingHandler(translator))
	r.Register(handler.NewConflictHandler(engine))
	r.Register(handler.NewOrderHandler(orderQuery))
	r.Register(handler.NewDiagnosticsHandler(cfg.Credentials, diagnostics))
	r.Setup()

	engineHTTP.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.App.Env == "production",
		}, jwtAuth),
		ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engineHTTP,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping sync scheduler", zap.Error(err))
	}
	cancel()

	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited")
}

func runMigrations(db *persistence.Database, log *zap.Logger) {
	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", zap.Error(err))
	}
	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := m.Up(); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}
}

// scheduledPass adapts SyncAll to the scheduler, which knows nothing about
// issues or durations
func scheduledPass(orchestrator *appintegration.SyncOrchestrator) scheduler.PassFunc {
	return func(ctx context.Context) []scheduler.Outcome {
		reports := orchestrator.SyncAll(ctx, integration.TriggerScheduled)
		outcomes := make([]scheduler.Outcome, 0, len(reports))
		for _, r := range reports {
			outcomes = append(outcomes, scheduler.Outcome{
				Type:    r.Type,
				Status:  r.Status,
				Count:   r.Count,
				Message: r.Message,
			})
		}
		return outcomes
	}
}

// archiveStorage returns the S3 bucket when configured, else an in-process store
func archiveStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) appintegration.ArchiveStorage {
	if !cfg.Storage.Enabled {
		return storage.NewMemoryObjectStorage(cfg.Storage.Prefix)
	}
	s3, err := storage.NewS3ObjectStorage(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration))
	if err != nil {
		log.Fatal("Failed to initialize archive storage", zap.Error(err))
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		log.Warn("Archive bucket not reachable", zap.String("bucket", s3.Bucket()), zap.Error(err))
	}
	return s3
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
