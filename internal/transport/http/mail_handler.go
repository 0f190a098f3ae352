package httptransport

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/middleware"
	"suimail/backend/internal/service"
	"suimail/backend/internal/storage"
)

// MailHandler 处理邮件相关的 HTTP 请求
type MailHandler struct {
	mails *service.MailService
	log   *zap.Logger
}

// NewMailHandler 创建邮件处理器实例
func NewMailHandler(mails *service.MailService, log *zap.Logger) *MailHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailHandler{mails: mails, log: log}
}

type mailSummary struct {
	ID              string `json:"id"`
	Subject         string `json:"subject"`
	SenderNs        string `json:"senderNs"`
	RecipientNs     string `json:"recipientNs"`
	AttachmentCount int    `json:"attachmentCount"`
	Read            bool   `json:"read"`
	CreatedAt       string `json:"createdAt"`
}

func newMailSummary(m *domain.Mail) mailSummary {
	return mailSummary{
		ID:              m.ID,
		Subject:         m.Subject,
		SenderNs:        m.SenderNs,
		RecipientNs:     m.RecipientNs,
		AttachmentCount: m.AttachmentCount,
		Read:            m.ReadAt != nil,
		CreatedAt:       m.CreatedAt.Format(time.RFC3339),
	}
}

type attachmentResponse struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Data     []byte `json:"data"` // JSON 序列化为 base64
}

type mailDetail struct {
	ID          string               `json:"id"`
	Subject     string               `json:"subject"`
	Body        string               `json:"body"`
	Digest      string               `json:"digest,omitempty"`
	SenderNs    string               `json:"senderNs"`
	RecipientNs string               `json:"recipientNs"`
	Read        bool                 `json:"read"`
	CreatedAt   string               `json:"createdAt"`
	Attachments []attachmentResponse `json:"attachments"`
}

// Send 处理发信请求。multipart 表单：recipientNs、subject、body、
// digest 字段，附件放在 attachments 文件域。
func (h *MailHandler) Send(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, MsgInvalidForm)
		return
	}

	input := service.SendMailInput{
		SenderID:    c.GetString(middleware.ContextUserID),
		RecipientNs: c.PostForm("recipientNs"),
		Subject:     c.PostForm("subject"),
		Body:        c.PostForm("body"),
		Digest:      c.PostForm("digest"),
	}
	if strings.TrimSpace(input.Subject) == "" {
		BadRequest(c, GetErrorMessage(domain.ErrEmptySubject))
		return
	}
	if input.Body == "" {
		BadRequest(c, GetErrorMessage(domain.ErrEmptyBody))
		return
	}

	for _, file := range form.File["attachments"] {
		data, err := readUpload(file)
		if err != nil {
			BadRequest(c, MsgInvalidForm)
			return
		}
		input.Attachments = append(input.Attachments, service.AttachmentInput{
			FileName: file.Filename,
			FileType: file.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	mail, err := h.mails.SendMail(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecipientNotFound):
			NotFound(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrDeliveryFailed):
			h.log.Error("delivery failed", zap.Error(err))
			InternalError(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to send mail", zap.Error(err))
			InternalError(c, MsgMailSendFailed)
		}
		return
	}

	Created(c, newMailSummary(mail))
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Inbox 返回调用者收件箱摘要
func (h *MailHandler) Inbox(c *gin.Context) {
	h.listMails(c, h.mails.FetchInbox, MsgInboxListFailed)
}

// Outbox 返回调用者发件箱摘要
func (h *MailHandler) Outbox(c *gin.Context) {
	h.listMails(c, h.mails.FetchOutbox, MsgOutboxListFailed)
}

func (h *MailHandler) listMails(c *gin.Context, fetch func(string) ([]domain.Mail, error), failMsg string) {
	mails, err := fetch(c.GetString(middleware.ContextUserID))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to list mails", zap.Error(err))
		InternalError(c, failMsg)
		return
	}

	summaries := make([]mailSummary, 0, len(mails))
	for i := range mails {
		summaries = append(summaries, newMailSummary(&mails[i]))
	}
	Success(c, summaries)
}

// Get 读取并重组单封邮件
func (h *MailHandler) Get(c *gin.Context) {
	fetched, err := h.mails.FetchMailByID(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrMailNotFound):
			NotFound(c, GetErrorMessage(err))
		case errors.Is(err, service.ErrMailAssembly):
			h.log.Error("mail assembly failed", zap.Error(err))
			InternalError(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to get mail", zap.Error(err))
			InternalError(c, MsgMailGetFailed)
		}
		return
	}

	detail := mailDetail{
		ID:          fetched.ID,
		Subject:     fetched.Subject,
		Body:        fetched.Body,
		Digest:      fetched.Digest,
		SenderNs:    fetched.SenderNs,
		RecipientNs: fetched.RecipientNs,
		Read:        fetched.ReadAt != nil,
		CreatedAt:   fetched.CreatedAt.Format(time.RFC3339),
		Attachments: make([]attachmentResponse, 0, len(fetched.Attachments)),
	}
	for _, a := range fetched.Attachments {
		detail.Attachments = append(detail.Attachments, attachmentResponse{
			FileName: a.FileName,
			FileType: a.FileType,
			Data:     a.Data,
		})
	}
	Success(c, detail)
}

type mailIDsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// ReadMany 批量标记已读
func (h *MailHandler) ReadMany(c *gin.Context) {
	var req mailIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	err := h.mails.MarkManyAsRead(req.IDs, c.GetString(middleware.ContextUserID))
	if err != nil {
		if errors.Is(err, storage.ErrMailNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to mark mails read", zap.Error(err))
		InternalError(c, MsgMarkReadFailed)
		return
	}
	SuccessWithMsg(c, "标记成功", nil)
}

// DeleteForSender 从发送方视角批量删除
func (h *MailHandler) DeleteForSender(c *gin.Context) {
	h.deleteMany(c, h.mails.DeleteForSender)
}

// DeleteForRecipient 从接收方视角批量删除
func (h *MailHandler) DeleteForRecipient(c *gin.Context) {
	h.deleteMany(c, h.mails.DeleteForRecipient)
}

func (h *MailHandler) deleteMany(c *gin.Context, del func([]string, string) error) {
	var req mailIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := del(req.IDs, c.GetString(middleware.ContextUserID)); err != nil {
		if errors.Is(err, storage.ErrMailNotFound) {
			NotFound(c, GetErrorMessage(err))
			return
		}
		h.log.Error("failed to delete mails", zap.Error(err))
		InternalError(c, MsgMailDeleteFailed)
		return
	}
	SuccessWithMsg(c, "删除成功", nil)
}

// Features 查询调用者在目标收件人名单上的状态
func (h *MailHandler) Features(c *gin.Context) {
	features, err := h.mails.GetAddressListFeatures(c.Param("ns"), c.GetString(middleware.ContextUserID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRecipientNotFound), errors.Is(err, service.ErrSenderNotFound):
			NotFound(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to get address list features", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}
	Success(c, features)
}
