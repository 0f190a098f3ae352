package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/middleware"
	"suimail/backend/internal/service"
	"suimail/backend/internal/storage"
)

// UserHandler 处理用户设置相关的 HTTP 请求
type UserHandler struct {
	users *service.UserService
	log   *zap.Logger
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(users *service.UserService, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{users: users, log: log}
}

type profileResponse struct {
	ID        string   `json:"id"`
	Address   string   `json:"address"`
	MailNs    string   `json:"mailNs,omitempty"`
	MailFee   float64  `json:"mailFee"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
	Whitelist []string `json:"whitelist"`
	Blacklist []string `json:"blacklist"`
}

func newProfileResponse(user *domain.User) profileResponse {
	return profileResponse{
		ID:        user.ID,
		Address:   user.Address,
		MailNs:    user.Ns(),
		MailFee:   user.MailFee,
		AvatarURL: user.AvatarURL,
		Whitelist: user.Whitelist,
		Blacklist: user.Blacklist,
	}
}

// Me 返回当前登录用户的完整档案
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Get(c.GetString(middleware.ContextUserID))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to get profile", zap.Error(err))
		InternalError(c, MsgProfileGetFailed)
		return
	}
	Success(c, newProfileResponse(user))
}

type setNsRequest struct {
	MailNs string `json:"mailNs" binding:"required"`
}

// SetMailNs 绑定命名空间，只允许绑定一次
func (h *UserHandler) SetMailNs(c *gin.Context) {
	var req setNsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := h.users.SetMailNs(c.GetString(middleware.ContextUserID), req.MailNs)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMailNs), errors.Is(err, domain.ErrMailNsTooLong):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, storage.ErrMailNsAlreadySet), errors.Is(err, storage.ErrMailNsTaken):
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to bind namespace", zap.Error(err))
			InternalError(c, MsgNsBindFailed)
		}
		return
	}
	SuccessWithMsg(c, "绑定成功", gin.H{"mailNs": req.MailNs})
}

type setFeeRequest struct {
	MailFee *float64 `json:"mailFee" binding:"required"`
}

// SetMailFee 更新收件费用
func (h *UserHandler) SetMailFee(c *gin.Context) {
	var req setFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := h.users.SetMailFee(c.GetString(middleware.ContextUserID), *req.MailFee)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFee) {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to set fee", zap.Error(err))
		InternalError(c, MsgFeeUpdateFailed)
		return
	}
	SuccessWithMsg(c, "更新成功", gin.H{"mailFee": *req.MailFee})
}

// GetFeeByNs 按命名空间查询收件费用，发信前展示用
func (h *UserHandler) GetFeeByNs(c *gin.Context) {
	fee, err := h.users.GetMailFeeByNs(c.Param("ns"))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to get fee", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}
	Success(c, gin.H{"mailFee": fee})
}

type setAvatarRequest struct {
	AvatarURL string `json:"avatarUrl" binding:"required,url"`
}

// SetAvatar 更新头像地址
func (h *UserHandler) SetAvatar(c *gin.Context) {
	var req setAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.users.SetAvatarURL(c.GetString(middleware.ContextUserID), req.AvatarURL); err != nil {
		h.log.Error("failed to set avatar", zap.Error(err))
		InternalError(c, MsgAvatarSetFailed)
		return
	}
	SuccessWithMsg(c, "更新成功", gin.H{"avatarUrl": req.AvatarURL})
}

type listRequest struct {
	MailNs string `json:"mailNs" binding:"required"`
}

// AddToWhitelist 加入白名单
func (h *UserHandler) AddToWhitelist(c *gin.Context) {
	h.mutateList(c, h.users.AddToWhitelist)
}

// AddToBlacklist 加入黑名单
func (h *UserHandler) AddToBlacklist(c *gin.Context) {
	h.mutateList(c, h.users.AddToBlacklist)
}

// RemoveFromWhitelist 移出白名单
func (h *UserHandler) RemoveFromWhitelist(c *gin.Context) {
	h.mutateList(c, h.users.RemoveFromWhitelist)
}

// RemoveFromBlacklist 移出黑名单
func (h *UserHandler) RemoveFromBlacklist(c *gin.Context) {
	h.mutateList(c, h.users.RemoveFromBlacklist)
}

func (h *UserHandler) mutateList(c *gin.Context, mutate func(id, ns string) error) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := mutate(c.GetString(middleware.ContextUserID), req.MailNs)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMailNs), errors.Is(err, domain.ErrMailNsTooLong),
			errors.Is(err, service.ErrSelfListing):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrTargetNotFound):
			NotFound(c, GetErrorMessage(err))
		case errors.Is(err, storage.ErrAlreadyListed):
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to update list", zap.Error(err))
			InternalError(c, MsgListUpdateFailed)
		}
		return
	}
	SuccessWithMsg(c, "更新成功", nil)
}
