package main

import (
	"alcyxob/video-catalog/internal/api"
	"alcyxob/video-catalog/internal/config"
	"alcyxob/video-catalog/internal/logging"
	"alcyxob/video-catalog/internal/metrics"
	"alcyxob/video-catalog/internal/repository"
	"alcyxob/video-catalog/internal/repository/memory"
	"alcyxob/video-catalog/internal/repository/mongo"
	"alcyxob/video-catalog/internal/service"
	"alcyxob/video-catalog/internal/storage"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// A missing .env is fine; real deployments pass plain environment variables.
	_ = godotenv.Load()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	logger := logging.New(cfg.App.Name, cfg.App.Env)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
	logger.Info("server exited")
}

// run serves until SIGINT/SIGTERM or a listen failure. Errors are returned
// rather than logged fatally so deferred cleanup always runs.
func run(cfg config.Config, logger *logrus.Logger) error {
	handler, closeStores, err := buildHandler(context.Background(), cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}
	defer closeStores()

	// --- Start HTTP Server ---
	// No read/write timeout: uploads of up to max_upload_bytes are bounded by
	// storage.put_timeout instead.
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Infof("server starting on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	return nil
}

// buildHandler opens the stores and wires the services into a gin engine.
// The returned func releases the document store connection.
func buildHandler(ctx context.Context, cfg config.Config, logger *logrus.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (http.Handler, func(), error) {
	// --- Object storage ---
	// Opened first so a bad storage config fails with no connection open.
	objectStore, localMedia, err := openObjectStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize object store: %w", err)
	}

	// --- Repositories ---
	userRepo, videoRepo, closeDB, err := openRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize document store: %w", err)
	}

	// --- Services ---
	collector := metrics.NewCollector(reg)
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, logger)
	catalogService := service.NewCatalogService(videoRepo)
	engagementService := service.NewEngagementService(videoRepo, service.RetryPolicy{
		MaxAttempts: cfg.Engagement.MaxAttempts,
		Deadline:    cfg.Engagement.Deadline,
	}, collector, logger)
	ingestService := service.NewIngestService(videoRepo, objectStore, service.IngestOptions{
		CapabilityTTL: cfg.Storage.CapabilityTTL,
		PutTimeout:    cfg.Storage.PutTimeout,
	}, collector, logger)

	// --- Gin engine ---
	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestIDMiddleware())
	router.Use(api.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	api.SetupRoutes(router, api.Deps{
		Auth:           authService,
		Catalog:        catalogService,
		Engagement:     engagementService,
		Ingest:         ingestService,
		LocalMedia:     localMedia,
		MetricsHandler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})
	return router, closeDB, nil
}

func openRepositories(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (repository.UserRepository, repository.VideoRepository, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn("using in-memory document store; data is lost on restart")
		return memory.NewUserRepository(), memory.NewVideoRepository(), func() {}, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, cfg.InitTimeout)
	defer cancel()

	client, err := mongo.ConnectDB(initCtx, cfg.URI)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() {
		logger.Info("disconnecting MongoDB")
		if err := mongo.DisconnectDB(client); err != nil {
			logger.WithError(err).Error("failed to disconnect MongoDB")
		}
	}

	db := client.Database(cfg.Name)
	if err := mongo.Init(initCtx, db); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("init database: %w", err)
	}
	logger.WithField("database", cfg.Name).Info("database connection established")

	return mongo.NewMongoUserRepository(db), mongo.NewMongoVideoRepository(db), closeDB, nil
}

// openObjectStore returns the configured store. The local backend is also
// returned on its own so the media route can serve its files.
func openObjectStore(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (storage.ObjectStore, *storage.LocalStorage, error) {
	switch cfg.Driver {
	case "s3":
		store, err := storage.NewS3Storage(ctx, cfg.S3, logger)
		return store, nil, err
	case "gcs":
		store, err := storage.NewGCSStorage(ctx, cfg.GCS, logger)
		return store, nil, err
	case "local":
		store, err := storage.NewLocalStorage(cfg.Local, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown storage driver %q", storage.ErrNotConfigured, cfg.Driver)
	}
}
