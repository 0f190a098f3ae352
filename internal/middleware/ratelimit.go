package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"suimail/backend/internal/monitoring"
	"suimail/backend/internal/storage"
)

// RateLimiter 基于固定窗口计数的 IP 限流中间件
type RateLimiter struct {
	repo    storage.RateLimitRepository
	limit   int64
	window  time.Duration
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewRateLimiter 创建限流中间件
func NewRateLimiter(repo storage.RateLimitRepository, limit int64, window time.Duration, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		repo:   repo,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// SetMetrics 设置监控指标收集器（可选）
func (rl *RateLimiter) SetMetrics(metrics *monitoring.Metrics) {
	rl.metrics = metrics
}

// ByIP 按客户端 IP 限流。计数后端故障时放行，limiter 不能成为单点。
func (rl *RateLimiter) ByIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ip:%s", c.ClientIP())

		count, err := rl.repo.IncrementRateLimit(key, rl.window)
		if err != nil {
			rl.log.Warn("rate limit backend unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > rl.limit {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock("ip")
			}
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
