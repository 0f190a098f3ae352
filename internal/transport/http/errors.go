package httptransport

import (
	"errors"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/service"
	"suimail/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 校验错误
	domain.ErrInvalidAddress: "钱包地址格式无效",
	domain.ErrInvalidMailNs:  "命名空间格式无效",
	domain.ErrMailNsTooLong:  "命名空间超出长度限制",
	domain.ErrInvalidFee:     "费用必须是非负数",
	domain.ErrEmptySubject:   "主题不能为空",
	domain.ErrEmptyBody:      "正文不能为空",

	// 用户错误
	storage.ErrUserNotFound:     "用户不存在",
	storage.ErrMailNsTaken:      "命名空间已被占用",
	storage.ErrMailNsAlreadySet: "命名空间已绑定，不可更换",
	storage.ErrAlreadyListed:    "该地址已在名单中",
	service.ErrSelfListing:      "不能把自己加入名单",
	service.ErrTargetNotFound:   "目标命名空间不存在",

	// 邮件错误
	storage.ErrMailNotFound:      "邮件不存在",
	service.ErrRecipientNotFound: "收件人不存在",
	service.ErrSenderNotFound:    "发件人不存在",
	service.ErrDeliveryFailed:    "邮件投递失败，请稍后重试",
	service.ErrMailAssembly:      "邮件读取失败，请稍后重试",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidForm    = "表单数据格式错误"

	// 认证相关
	MsgAuthRequired = "需要登录认证"
	MsgLoginFailed  = "登录失败，请稍后重试"

	// 邮件相关
	MsgMailSendFailed   = "发送邮件失败"
	MsgMailGetFailed    = "获取邮件失败"
	MsgInboxListFailed  = "获取收件箱失败"
	MsgOutboxListFailed = "获取发件箱失败"
	MsgMarkReadFailed   = "标记已读失败"
	MsgMailDeleteFailed = "删除邮件失败"

	// 用户设置相关
	MsgProfileGetFailed = "获取用户信息失败"
	MsgNsBindFailed     = "绑定命名空间失败"
	MsgFeeUpdateFailed  = "更新费用失败"
	MsgAvatarSetFailed  = "更新头像失败"
	MsgListUpdateFailed = "更新名单失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
