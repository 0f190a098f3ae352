package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"suimail/backend/internal/auth"
	"suimail/backend/internal/config"
	"suimail/backend/internal/middleware"
	"suimail/backend/internal/monitoring"
	"suimail/backend/internal/service"
	"suimail/backend/internal/storage"
	"suimail/backend/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	MailService   *service.MailService
	UserService   *service.UserService
	AuthService   *auth.Service
	WebSocketHub  *websocket.Hub
	Metrics       *monitoring.Metrics
	HealthChecker *monitoring.HealthChecker
	RateLimitRepo storage.RateLimitRepository // 可选，为空时不启用限流
	Logger        *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.MailBodyLimit))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 允许所有来源时必须关闭凭证支持
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// IP 限流
	if deps.RateLimitRepo != nil && deps.Config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			deps.RateLimitRepo,
			deps.Config.RateLimit.Requests,
			deps.Config.RateLimit.Window,
			deps.Logger,
		)
		limiter.SetMetrics(deps.Metrics)
		router.Use(limiter.ByIP())
	}

	// 创建处理器与认证中间件
	authHandler := NewAuthHandler(deps.AuthService, deps.Logger)
	mailHandler := NewMailHandler(deps.MailService, deps.Logger)
	userHandler := NewUserHandler(deps.UserService, deps.Logger)
	jwtAuth := middleware.NewJWTAuth(deps.AuthService, deps.Logger)

	// 认证
	router.POST("/auth/login", authHandler.Login)

	// 邮件
	mail := router.Group("/mail", jwtAuth.RequireAuth())
	{
		mail.POST("/send", mailHandler.Send)
		mail.GET("/inbox/me", mailHandler.Inbox)
		mail.GET("/outbox/me", mailHandler.Outbox)
		mail.PATCH("/read-many", mailHandler.ReadMany)
		mail.POST("/sender/delete-many", mailHandler.DeleteForSender)
		mail.POST("/recipient/delete-many", mailHandler.DeleteForRecipient)
		mail.GET("/features/:ns", mailHandler.Features)
		mail.GET("/:id", mailHandler.Get)
	}

	// 用户设置
	user := router.Group("/user", jwtAuth.RequireAuth())
	{
		user.GET("/me", userHandler.Me)
		user.POST("/ns", userHandler.SetMailNs)
		user.POST("/fee", userHandler.SetMailFee)
		user.GET("/fee/:ns", userHandler.GetFeeByNs)
		user.POST("/avatar", userHandler.SetAvatar)
		user.POST("/whitelist", userHandler.AddToWhitelist)
		user.DELETE("/whitelist", userHandler.RemoveFromWhitelist)
		user.POST("/blacklist", userHandler.AddToBlacklist)
		user.DELETE("/blacklist", userHandler.RemoveFromBlacklist)
	}

	// WebSocket 推送
	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	// 运维端点
	if deps.HealthChecker != nil {
		router.GET("/healthz", gin.WrapF(deps.HealthChecker.LiveHandler()))
		router.GET("/readyz", gin.WrapF(deps.HealthChecker.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	return router
}
