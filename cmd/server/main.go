package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/recipebook/internal/config"
	"github.com/zfogg/recipebook/internal/container"
	"github.com/zfogg/recipebook/internal/handlers"
	"github.com/zfogg/recipebook/internal/logger"
	"github.com/zfogg/recipebook/internal/metrics"
	"github.com/zfogg/recipebook/internal/middleware"
	"github.com/zfogg/recipebook/internal/telemetry"
	"go.uber.org/zap"
)

const serviceName = "recipebook-api"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()

	if err := logger.Initialize(logger.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  !cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log.Info("=== Recipebook server starting ===", zap.String("environment", cfg.Environment))

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.OTelEnabled,
		SamplingRate: cfg.OTelSamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}

	metrics.Initialize()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	deps, err := container.Build(startupCtx, cfg)
	cancelStartup()
	if err != nil {
		logger.FatalWithFields("Failed to initialize dependencies", err)
	}

	// Periodic index reconciliation (disabled when RECONCILE_INTERVAL is unset)
	reconciler := deps.Reconciler()
	reconciler.Start()

	h := handlers.NewHandlers(deps.Recipes(), deps.Users(), deps.Engine())
	h.SetHealthChecks(deps.DB(), deps.SearchClient())

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	if cfg.OTelEnabled {
		r.Use(middleware.TracingMiddleware(serviceName))
	}

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-User-ID", "X-Request-ID"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("Recipebook API listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Server failed", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}

	reconciler.Stop()

	// Drains pending analytics writes, then closes Redis and the database
	if err := deps.Cleanup(ctx); err != nil {
		logger.ErrorWithFields("Cleanup incomplete", err)
	}

	if err := telemetry.Shutdown(ctx, tp); err != nil {
		logger.ErrorWithFields("Failed to flush traces", err)
	}

	logger.Log.Info("Server exited")
}
