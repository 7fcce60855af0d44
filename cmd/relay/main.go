package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/services"
	httphandlers "github.com/toxikmusic/traxx-current-sub001/internal/handlers/http"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/backup"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/middleware"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/monitoring"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/repositories"
	wssignal "github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/signal"
	"github.com/toxikmusic/traxx-current-sub001/internal/infrastructure/storage"
	"github.com/toxikmusic/traxx-current-sub001/pkg/config"
	"github.com/toxikmusic/traxx-current-sub001/pkg/logger"
	"github.com/toxikmusic/traxx-current-sub001/pkg/tracing"
)

func main() {
	startTime := time.Now()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing
	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "traxx-relay",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: os.Getenv("TRAXX_ENV"),
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Repositories
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()
	streamRepo := repoFactory.CreateStreamRepository()

	// Object-storage mirror for recordings; nil keeps recordings local-only.
	var mirror storage.Storage
	if cfg.Storage.S3Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3Store, err := storage.NewS3StorageFromEnv(ctx, cfg.Storage.S3Region, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
		cancel()
		if err != nil {
			log.Fatalw("failed to initialize S3 storage", "error", err)
		}
		mirror = s3Store
		log.Infow("recording mirror enabled", "bucket", cfg.Storage.S3Bucket, "prefix", cfg.Storage.S3Prefix)
	}

	// Monitoring
	collector := monitoring.NewPrometheusCollector()
	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddRepositoryCheck(streamRepo, 2*time.Second)

	// Core services
	keyService := services.NewKeyService(cfg.Keys.Secret, cfg.Keys.PublicSecret)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	streamService := services.NewStreamService(streamRepo, keyService, cfg.Keys.Expiry, log)
	recordingStore := services.NewRecordingStore(cfg.HLS.LocalDir, mirror, cfg.Recordings.TTL, log, collector)
	packaging := services.NewPackagingService(streamRepo, recordingStore, cfg.Storage.S3Enabled, cfg.HLS.LocalDir, log, collector)

	// Signaling: the WebSocket server doubles as the registry's event sink,
	// so the registry is bound after construction.
	wsOpts := wssignal.Options{
		PingInterval:    cfg.Signal.PingInterval,
		PongTimeout:     cfg.Signal.PongTimeout,
		WriteTimeout:    cfg.Signal.WriteTimeout,
		MaxMessageBytes: cfg.Signal.MaxMessageBytes,
	}
	if cfg.RateLimiting.Enabled {
		wsOpts.MessagesPerSecond = cfg.RateLimiting.WebSocket.MessagesPerSecond
		wsOpts.Burst = cfg.RateLimiting.WebSocket.Burst
	}
	wsServer := wssignal.NewWebSocketServer(nil, keyService, cfg.Keys.Expiry, wsOpts, log)
	registry := services.NewSessionRegistry(keyService, streamRepo, wsServer, cfg.Keys.Expiry, log, collector)
	wsServer.SetRegistry(registry)

	// The recordings index is in-memory; snapshot it through the storage
	// backend so permanent recordings survive restarts.
	snapBackend := mirror
	if snapBackend == nil {
		fileStore, err := storage.NewFileStorage(cfg.HLS.LocalDir)
		if err != nil {
			log.Fatalw("failed to initialize local storage", "error", err)
		}
		snapBackend = fileStore
	}
	snapshotter := backup.NewIndexSnapshotter(recordingStore, snapBackend, log)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := snapshotter.Restore(ctx); err != nil {
			log.Warnw("failed to restore recordings index", "error", err)
		}
		cancel()
	}

	// Expired-recording sweeper: once at start, then on a ticker. With Redis
	// enabled a cross-instance lock keeps concurrent relays from double
	// sweeping shared storage.
	sweepLock := repoFactory.NewSweepLock("traxx:recordings:sweep", cfg.Recordings.SweepInterval)
	sweep := func(ctx context.Context) {
		if sweepLock != nil {
			acquired, err := sweepLock.TryAcquire(ctx)
			if err != nil {
				log.Warnw("failed to acquire sweep lock", "error", err)
				return
			}
			if !acquired {
				return
			}
			defer func() {
				if err := sweepLock.Release(ctx); err != nil {
					log.Warnw("failed to release sweep lock", "error", err)
				}
			}()
		}
		if n := recordingStore.SweepExpired(ctx); n > 0 {
			log.Infow("swept expired recordings", "count", n)
		}
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go snapshotter.Run(sweepCtx, cfg.Recordings.SweepInterval)
	go func() {
		sweep(sweepCtx)
		ticker := time.NewTicker(cfg.Recordings.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				sweep(sweepCtx)
			}
		}
	}()

	// HTTP surface
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	authMW := middleware.AuthMiddleware(authService)
	optionalAuthMW := middleware.OptionalAuthMiddleware(authService)
	httphandlers.NewStreamHandler(streamService, keyService, packaging, registry).SetupRoutes(router, authMW, optionalAuthMW)
	httphandlers.NewHLSHandler(packaging, cfg.HLS.LocalDir).SetupRoutes(router)
	httphandlers.NewRecordingHandler(recordingStore).SetupRoutes(router)

	router.GET(cfg.Signal.Path, func(c *gin.Context) {
		wsServer.HandleWebSocket(c.Writer, c.Request)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
			"connections": wsServer.ConnectionCount(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := healthChecker.CheckAll(ctx)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("starting traxx relay on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	stopSweeper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Info("traxx relay stopped")
}
