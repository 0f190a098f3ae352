package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"suimail/backend/internal/auth"
	"suimail/backend/internal/domain"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.Service // 认证业务服务
	log         *zap.Logger   // 结构化日志记录器
}

// NewAuthHandler 创建新的认证处理器实例
func NewAuthHandler(authService *auth.Service, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type loginRequest struct {
	Address string `json:"address" binding:"required"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expiresIn"`
	User      userResponse `json:"user"`
}

type userResponse struct {
	ID        string  `json:"id"`
	Address   string  `json:"address"`
	MailNs    string  `json:"mailNs,omitempty"`
	MailFee   float64 `json:"mailFee"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
}

func newUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Address:   user.Address,
		MailNs:    user.Ns(),
		MailFee:   user.MailFee,
		AvatarURL: user.AvatarURL,
	}
}

// Login 处理钱包登录请求。每次登录都会作废该账号之前签发的令牌。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	resp, err := h.authService.Login(req.Address)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAddress) {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to login", zap.Error(err))
		InternalError(c, MsgLoginFailed)
		return
	}

	Success(c, authResponse{
		Token:     resp.Token,
		ExpiresIn: resp.ExpiresIn,
		User:      newUserResponse(resp.User),
	})
}
