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

	"suimail/backend/internal/auth"
	jwtpkg "suimail/backend/internal/auth/jwt"
	"suimail/backend/internal/config"
	"suimail/backend/internal/logger"
	"suimail/backend/internal/mailcrypt"
	"suimail/backend/internal/monitoring"
	"suimail/backend/internal/service"
	"suimail/backend/internal/storage"
	"suimail/backend/internal/storage/memory"
	"suimail/backend/internal/storage/postgres"
	redisstore "suimail/backend/internal/storage/redis"
	httptransport "suimail/backend/internal/transport/http"
	"suimail/backend/internal/walrus"
	"suimail/backend/internal/websocket"
)

// main 是邮件中继后端 HTTP 服务的程序入口。
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

	// 初始化日志系统
	log, err := logger.New(cfg.Log, logger.Options{})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()
	log.Info("starting suimail API server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化元数据存储
	var store storage.Store
	switch cfg.Database.Type {
	case "postgres":
		store, err = postgres.NewStore(cfg.Database.DSN)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		log.Info("using postgres storage")
	case "mysql":
		store, err = postgres.NewMySQLStore(cfg.Database.DSN)
		if err != nil {
			log.Fatal("failed to connect to mysql", zap.Error(err))
		}
		log.Info("using mysql storage")
	default:
		store = memory.NewStore()
		log.Warn("using in-memory storage, data will not survive restarts")
	}
	defer store.Close()

	// 初始化 Redis（可选，不可用时内存存储退回自带计数，其他存储直接关闭限流）
	var rateLimitRepo storage.RateLimitRepository
	redisClient, err := redisstore.New(&cfg.Redis, log)
	if err != nil {
		if cfg.Database.Type != "postgres" && cfg.Database.Type != "mysql" {
			log.Warn("redis unavailable, falling back to store-backed rate limiting", zap.Error(err))
			rateLimitRepo = store
		} else {
			log.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		}
	} else {
		defer redisClient.Close()
		rateLimitRepo = redisstore.NewCache(redisClient)
	}

	// 初始化外部 blob 存储客户端与正文加密
	blobs := walrus.New(walrus.Config{
		PublisherURL:  cfg.Walrus.PublisherURL,
		AggregatorURL: cfg.Walrus.AggregatorURL,
		Timeout:       cfg.Walrus.Timeout,
	}, log)
	log.Info("walrus endpoints configured",
		zap.String("publisher", cfg.Walrus.PublisherURL),
		zap.String("aggregator", cfg.Walrus.AggregatorURL),
	)

	codec, err := mailcrypt.NewCodec(cfg.Cipher.Secret)
	if err != nil {
		log.Fatal("failed to initialize mail codec", zap.Error(err))
	}

	// 监控指标与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := monitoring.NewHealthChecker(store, cfg.Walrus.AggregatorURL, log)

	// 初始化认证
	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	authService := auth.NewService(store, jwtManager, log)
	authService.SetMetrics(metrics)

	// WebSocket Hub：新邮件推送
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, authService, log)
	wsHub.SetMetrics(metrics)

	// 初始化业务服务
	mailService := service.NewMailService(store, store, blobs, codec, log)
	mailService.SetNotifier(wsHub)
	mailService.SetMetrics(metrics)
	userService := service.NewUserService(store, log)

	// 创建 HTTP 路由
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		MailService:   mailService,
		UserService:   userService,
		AuthService:   authService,
		WebSocketHub:  wsHub,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		RateLimitRepo: rateLimitRepo,
		Logger:        log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动 WebSocket Hub
	go func() {
		log.Info("starting WebSocket hub")
		wsHub.Run(ctx)
	}()

	// 启动 HTTP 服务器
	go func() {
		log.Info("API server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server stopped cleanly")
	}
}
