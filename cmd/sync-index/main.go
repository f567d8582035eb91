package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	adapterRepo "github.com/richstorm00/saas-starter/internal/adapter/repository"
	"github.com/richstorm00/saas-starter/internal/config"
	"github.com/richstorm00/saas-starter/internal/infrastructure/database"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"github.com/richstorm00/saas-starter/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	pageSize := flag.Int("page-size", 0, "users fetched per page (defaults to lookup.page_size)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Service.Clerk.SecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY is required")
	}
	if !cfg.Database.Enabled {
		log.Fatal("database must be enabled to persist the customer index")
	}
	if *pageSize <= 0 {
		*pageSize = cfg.Service.Lookup.PageSize
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	repos := database.NewRepositories(db, zapLogger)
	store := adapterRepo.NewClerkMetadataStore(adapterRepo.ClerkConfig{
		BaseURL:   cfg.Service.Clerk.APIURL,
		SecretKey: cfg.Service.Clerk.SecretKey,
		Timeout:   cfg.Service.Clerk.Timeout,
	}, zapLogger)

	backfill := usecase.NewIndexBackfill(store, repos.CustomerIndex, usecase.NewReconciler(), zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := backfill.Run(ctx, *pageSize)
	if err != nil {
		zapLogger.Fatal("Customer index backfill failed", zap.Error(err))
	}

	zapLogger.Info("Customer index backfill completed",
		zap.Int("scanned", report.Scanned),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
}
