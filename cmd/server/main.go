package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richstorm00/saas-starter/internal/adapter/messaging"
	adapterRepo "github.com/richstorm00/saas-starter/internal/adapter/repository"
	"github.com/richstorm00/saas-starter/internal/config"
	"github.com/richstorm00/saas-starter/internal/domain/repository"
	"github.com/richstorm00/saas-starter/internal/infrastructure/database"
	grpcServer "github.com/richstorm00/saas-starter/internal/infrastructure/grpc"
	httpServer "github.com/richstorm00/saas-starter/internal/infrastructure/http"
	"github.com/richstorm00/saas-starter/internal/infrastructure/metrics"
	"github.com/richstorm00/saas-starter/internal/infrastructure/provider/stripe"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"github.com/richstorm00/saas-starter/pkg/logger"
	pkgMessaging "github.com/richstorm00/saas-starter/pkg/messaging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize Sentry before the logger so errors are forwarded
	sentryEnabled, err := logger.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, cfg.Sentry.Release)
	if err != nil {
		log.Fatalf("Failed to initialize Sentry: %v", err)
	}
	var cores []zapcore.Core
	if sentryEnabled {
		cores = append(cores, logger.NewSentryCore(sentry.CurrentHub(), zapcore.ErrorLevel))
		defer logger.FlushSentry()
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log, cores...)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize repositories
	repos := database.NewMemoryRepositories()
	if cfg.Database.Enabled {
		db, err := database.NewConnection(&cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := database.Close(db, zapLogger); err != nil {
				zapLogger.Error("Failed to close database connection", zap.Error(err))
			}
		}()

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, zapLogger); err != nil {
				zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
			}
		}
		repos = database.NewRepositories(db, zapLogger)
	} else {
		zapLogger.Warn("Database disabled, customer index and webhook log are kept in memory")
	}

	// Subscription change notifications
	var notifier usecase.ChangeNotifier = usecase.NopNotifier{}
	if cfg.Redis.Enabled {
		client, err := pkgMessaging.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		notifier = messaging.NewRedisNotifier(client, cfg.Redis.Channel, zapLogger)
	}

	var appMetrics usecase.Metrics = usecase.NopMetrics{}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		appMetrics = prom
		metricsHandler = prom.Handler()
	}

	processor := stripe.NewStripeProvider(stripe.Config{
		SecretKey:     cfg.Service.Stripe.SecretKey,
		WebhookSecret: cfg.Service.Stripe.WebhookSecret,
	}, zapLogger)

	var store repository.MetadataStore
	switch cfg.Service.MetadataBackend {
	case config.MetadataBackendMemory:
		zapLogger.Warn("Metadata backend is in memory, user metadata is lost on restart")
		store = adapterRepo.NewMemoryMetadataStore()
	default:
		store = adapterRepo.NewClerkMetadataStore(adapterRepo.ClerkConfig{
			BaseURL:   cfg.Service.Clerk.APIURL,
			SecretKey: cfg.Service.Clerk.SecretKey,
			Timeout:   cfg.Service.Clerk.Timeout,
		}, zapLogger)
	}

	reconciler := usecase.NewReconciler()
	locator := usecase.NewUserLocator(store, repos.CustomerIndex, reconciler, appMetrics, zapLogger,
		cfg.Service.Lookup.PageSize, cfg.Service.Lookup.PageLimit)

	services := &httpServer.Services{
		Ingestor: usecase.NewEventIngestor(processor, store, repos.CustomerIndex, repos.WebhookEvents,
			locator, reconciler, notifier, appMetrics, zapLogger),
		Projector:    usecase.NewPlanProjector(store, reconciler, appMetrics, zapLogger),
		Cancellation: usecase.NewCancellationService(store, processor, reconciler, notifier, appMetrics, zapLogger),
		Portal: usecase.NewPortalService(store, repos.CustomerIndex, processor, reconciler, appMetrics, zapLogger,
			cfg.Service.AppURL, cfg.Service.Stripe.PortalConfigurationID),
		Sync:     usecase.NewSyncService(store, repos.CustomerIndex, locator, processor, notifier, zapLogger),
		Catalog:  usecase.NewCatalogService(processor, zapLogger),
		Checkout: usecase.NewCheckoutService(store, processor, reconciler, zapLogger, cfg.Service.AppURL),
	}

	// Initialize servers
	httpSrv, err := httpServer.NewServer(cfg, zapLogger, services, metricsHandler)
	if err != nil {
		zapLogger.Fatal("Failed to create HTTP server", zap.Error(err))
	}

	var grpcSrv *grpcServer.Server
	if cfg.Server.GRPC.Enabled {
		grpcSrv = grpcServer.NewServer(cfg, zapLogger)
		go func() {
			if err := grpcSrv.Start(); err != nil {
				zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	zapLogger.Info("Billing service started",
		zap.String("environment", cfg.Service.Environment),
		zap.Bool("database", cfg.Database.Enabled),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("sentry", sentryEnabled),
	)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcSrv != nil {
		if err := grpcSrv.Shutdown(ctx); err != nil {
			zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
		}
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}
