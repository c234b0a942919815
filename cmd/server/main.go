package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"timecapsule/backend/internal/auth"
	jwtpkg "timecapsule/backend/internal/auth/jwt"
	"timecapsule/backend/internal/config"
	"timecapsule/backend/internal/logger"
	"timecapsule/backend/internal/middleware"
	"timecapsule/backend/internal/monitoring"
	"timecapsule/backend/internal/pool"
	"timecapsule/backend/internal/service"
	"timecapsule/backend/internal/storage"
	"timecapsule/backend/internal/storage/filesystem"
	"timecapsule/backend/internal/storage/hybrid"
	"timecapsule/backend/internal/storage/memory"
	httptransport "timecapsule/backend/internal/transport/http"
)

// main 启动时间胶囊 HTTP 服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log := logger.FromConfig(cfg.Log)
	defer log.Sync() //nolint:errcheck

	log.Info("starting timecapsule server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层：配置了数据库走 数据库+Redis 组合，否则用内存存储
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		hybridStore, serr := hybrid.NewStoreWithType(cfg.Database.Type, cfg.Database.DSN, &cfg.Redis)
		if serr != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", serr))
		}
		defer hybridStore.Close() //nolint:errcheck
		store = hybridStore
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 图片文件存储
	imageStore, err := filesystem.NewStore(cfg.Storage.ImagePath)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize image storage: %v", err))
	}
	log.Info("image storage initialized", zap.String("path", cfg.Storage.ImagePath))

	// 监控系统
	metrics := monitoring.NewMetrics()

	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0)) // 512MB
	alertManager.AddRule(monitoring.StorageHealthRule(store))

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 后台清理任务跑在协程池里
	workers := pool.NewWorkerPool(4, 64, log)
	workers.Start(ctx)
	defer workers.Stop()

	// 服务层
	capsuleService := service.NewCapsuleService(store, imageStore, cfg, log, workers)

	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authService := auth.NewService(store, store, jwtManager)

	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
		zap.Duration("refresh_expiry", cfg.JWT.RefreshExpiry),
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Config:      cfg,
		Capsules:    capsuleService,
		Auth:        authService,
		Store:       store,
		Images:      imageStore,
		Metrics:     metrics,
		RateLimiter: rateLimiter,
		Logger:      log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 告警监控 goroutine
	group.Go(func() error {
		alertManager.StartMonitoring(groupCtx, 1*time.Minute)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
