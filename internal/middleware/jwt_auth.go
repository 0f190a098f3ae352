package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"suimail/backend/internal/auth"
	"suimail/backend/internal/auth/jwt"
	"suimail/backend/internal/domain"
)

// 上下文键
const (
	ContextUserID = "userID"
	ContextUser   = "user"
)

// JWTAuth JWT认证中间件。除了校验签名还会核对会话围栏版本，
// 后续登录签发的新令牌会让旧令牌在此处被拒绝。
type JWTAuth struct {
	service *auth.Service
	log     *zap.Logger
}

// NewJWTAuth 创建JWT认证中间件
func NewJWTAuth(service *auth.Service, log *zap.Logger) *JWTAuth {
	if log == nil {
		log = zap.NewNop()
	}
	return &JWTAuth{service: service, log: log}
}

// RequireAuth 要求JWT认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		user, err := ja.service.VerifyToken(token)
		if err != nil {
			ja.log.Warn("token rejected",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)

			message := "invalid or expired token"
			if errors.Is(err, auth.ErrTokenRevoked) {
				message = "token revoked by a newer login"
			} else if errors.Is(err, jwt.ErrExpiredToken) {
				message = "token expired"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": message})
			c.Abort()
			return
		}

		// 将用户信息存储到上下文
		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)

		c.Next()
	}
}

// extractToken 从请求中提取JWT token
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	// 1. 从 Authorization header 提取
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// 2. 从 cookie 提取
	token, err := c.Cookie("access_token")
	if err == nil && token != "" {
		return token
	}

	return ""
}

// CurrentUser 从上下文取出已认证用户
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	value, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}
