package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"salesql-go/internal/ai"
	"salesql-go/internal/cache"
	"salesql-go/internal/config"
	"salesql-go/internal/database"
	"salesql-go/internal/handler"
	"salesql-go/internal/metrics"
	"salesql-go/internal/middleware"
	"salesql-go/internal/service"
)

func main() {
	configFile := flag.String("config", "", "path to config.yaml")
	envFile := flag.String("env", ".env", "path to .env file")
	flag.Parse()

	// 加载环境变量
	if err := config.LoadEnv(*envFile); err != nil {
		log.Printf("Failed to load env file: %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

// run 启动服务并等待退出信号
func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting SalesQL Server",
		zap.String("version", cfg.App.Version),
		zap.String("go_version", runtime.Version()))
	cfg.LLM.LogConfig(logger)

	model, err := ai.NewLangChainClient(cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize model client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, model, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        app.engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("SalesQL server starting",
			zap.String("addr", srv.Addr),
			zap.String("mode", gin.Mode()))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	// 设置关闭超时
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server gracefully stopped")
	return nil
}

// app 组装好的服务依赖
type app struct {
	engine *gin.Engine
	chat   *service.ChatService
	store  *database.Store
	redis  *redis.Client
	logger *zap.Logger
}

// newApp 初始化存储、缓存、问答流水线和路由
func newApp(ctx context.Context, cfg *config.Config, model ai.ModelClient, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}

	// 初始化销售数据存储
	store, err := database.NewStore(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("failed to bootstrap store: %w", err)
	}
	if cfg.Store.SeedFile != "" {
		inserted, err := store.LoadSeedFile(ctx, cfg.Store.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed file: %w", err)
		}
		logger.Info("Seed data loaded",
			zap.String("file", cfg.Store.SeedFile),
			zap.Int("inserted", inserted))
	}
	a.store = store

	// 初始化Prometheus指标
	prometheusMetrics := metrics.NewPrometheusMetrics(&metrics.MetricsConfig{
		Namespace:      metrics.DefaultMetricsConfig().Namespace,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	}, logger)

	// 可选的生成结果缓存
	var generationCache service.GenerationCache
	var cachePinger service.CachePinger
	if cfg.Cache.Enabled {
		client, err := config.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis client: %w", err)
		}
		a.redis = client
		gc := cache.NewGenerationCache(client, cfg.LLM.Model, cfg.Cache.TTL, logger)
		generationCache = gc
		cachePinger = gc
		logger.Info("Redis connection established successfully", zap.String("addr", cfg.Cache.Addr))
	}

	guard, err := ai.NewGuard(logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize guard: %w", err)
	}

	executor := service.NewSQLExecutor(store.Open, cfg.Store, logger)
	chat, err := service.NewChatService(model, guard, executor, service.ChatServiceOptions{
		Dialect:      dialectFor(cfg.Store.Driver),
		ModelTimeout: cfg.LLM.Timeout,
		Cache:        generationCache,
		Metrics:      prometheusMetrics,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize chat service: %w", err)
	}
	a.chat = chat

	healthService := service.NewHealthService(store, cachePinger, config.NewAppInfo(cfg.App), logger)

	// 初始化Gin路由器
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()

	middlewareConfig := middleware.DefaultMiddlewareConfig(logger)
	middlewareConfig.RateLimit.RequestsPerSecond = cfg.Server.RequestsPerSecond
	middlewareConfig.RateLimit.Burst = cfg.Server.Burst
	middleware.SetupMiddleware(r, middlewareConfig)
	r.Use(prometheusMetrics.HTTPMetricsMiddleware())

	err = handler.SetupRoutes(r, &handler.RouterConfig{
		AskHandler:    handler.NewAskHandler(chat, logger),
		PageHandler:   handler.NewPageHandler(chat, "", logger),
		HealthService: healthService,
		Metrics:       prometheusMetrics,
		RateLimiter:   middleware.NewRateLimiter(middlewareConfig.RateLimit),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = r

	return a, nil
}

// Close 释放外部连接
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
		a.redis = nil
	}
}

// dialectFor 存储驱动对应的提示词方言
func dialectFor(driver string) ai.Dialect {
	if driver == config.DriverPostgres {
		return ai.DialectPostgres
	}
	return ai.DialectSQLite
}
