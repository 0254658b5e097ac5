package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbilling "github.com/erp/billing/internal/application/billing"
	"github.com/erp/billing/internal/infrastructure/cache"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/logger"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/erp/billing/internal/interfaces/http/handler"
	"github.com/erp/billing/internal/interfaces/http/middleware"
	"github.com/erp/billing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.New(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting billing engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	serviceRepo := persistence.NewGormCustomerServiceRepository(db.DB)
	reportRepo := persistence.NewGormBillingReportRepository(db.DB)

	// Snapshot cache: Redis when reachable, in-process otherwise.
	var snapshots appbilling.ConfigSnapshotCache
	redisCache, err := cache.NewRedisSnapshotCache(cfg.Redis, cfg.Report.SnapshotTTL, log)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory snapshot cache", zap.Error(err))
		snapshots = cache.NewInMemorySnapshotCache(cfg.Report.SnapshotTTL)
	} else {
		snapshots = redisCache
		defer func() {
			_ = redisCache.Close()
		}()
	}
	serviceRepo.WithSnapshotCache(snapshots)

	// Application services
	reportService := appbilling.NewReportService(
		orderRepo, serviceRepo, reportRepo, snapshots,
		appbilling.ChargePolicy(cfg.Report.ChargePolicy), log)
	batchService := appbilling.NewBatchService(reportService, serviceRepo, cfg.Report.BatchWorkers, log)
	diagService := appbilling.NewDiagnosticService()

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.SecurityHeaders(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	r := router.NewRouter(engine)
	r.Register(handler.NewReportHandler(reportService, batchService, reportRepo, cfg.Report.GenerateTimeout, log))
	r.Register(handler.NewDiagnosticsHandler(diagService))
	r.RegisterRoot(handler.NewHealthHandler(db))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
