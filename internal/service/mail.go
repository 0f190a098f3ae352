package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/monitoring"
	"suimail/backend/internal/storage"
)

var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSenderNotFound    = errors.New("sender not found")
	ErrDeliveryFailed    = errors.New("mail delivery failed")
	ErrMailAssembly      = errors.New("mail assembly failed")
)

// BlobStore 外部内容寻址存储的抽象
type BlobStore interface {
	Put(ctx context.Context, payload []byte) (string, error)
	Get(ctx context.Context, blobID string) ([]byte, error)
}

// Codec 邮件正文的加密封装抽象
type Codec interface {
	Seal(plaintext []byte) (string, error)
	Open(envelope string) ([]byte, error)
}

// Notifier 新邮件到达通知的抽象
type Notifier interface {
	NotifyNewMail(userID string, mail *domain.Mail)
}

// MailService 封装邮件收发相关业务操作。
type MailService struct {
	users    storage.UserRepository
	mails    storage.MailRepository
	blobs    BlobStore
	codec    Codec
	notifier Notifier
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewMailService 创建邮件业务服务。
func NewMailService(users storage.UserRepository, mails storage.MailRepository, blobs BlobStore, codec Codec, log *zap.Logger) *MailService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailService{
		users: users,
		mails: mails,
		blobs: blobs,
		codec: codec,
		log:   log,
	}
}

// SetNotifier 设置新邮件通知器（可选）
func (s *MailService) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

// SetMetrics 设置监控指标收集器（可选）
func (s *MailService) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// AttachmentInput 定义发信时的单个附件。
type AttachmentInput struct {
	FileName string
	FileType string
	Data     []byte
}

// SendMailInput 定义发信所需的输入。
type SendMailInput struct {
	SenderID    string
	RecipientNs string
	Subject     string
	Body        string
	Digest      string
	Attachments []AttachmentInput
}

// SendMail 发送一封邮件：解析双方身份，加密正文并上传，
// 并发上传附件，最后落地元数据快照。
func (s *MailService) SendMail(ctx context.Context, input SendMailInput) (*domain.Mail, error) {
	recipient, err := s.users.GetUserByMailNs(input.RecipientNs)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	sender, err := s.users.GetUserByID(input.SenderID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}

	envelope, err := s.codec.Seal([]byte(input.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: seal body: %w", ErrDeliveryFailed, err)
	}

	blobID, err := s.uploadBlob(ctx, []byte(envelope))
	if err != nil {
		return nil, fmt.Errorf("%w: upload body: %w", ErrDeliveryFailed, err)
	}

	attachments, err := s.uploadAttachments(ctx, input.Attachments)
	if err != nil {
		return nil, fmt.Errorf("%w: upload attachments: %w", ErrDeliveryFailed, err)
	}

	// 记录双方命名空间快照，删除账号或改名不影响历史邮件显示
	mail := &domain.Mail{
		ID:          uuid.New().String(),
		BlobID:      blobID,
		Digest:      input.Digest,
		Subject:     input.Subject,
		SenderID:    &sender.ID,
		RecipientID: &recipient.ID,
		SenderNs:    sender.Ns(),
		RecipientNs: recipient.Ns(),
		CreatedAt:   time.Now().UTC(),
		Attachments: attachments,
	}
	if err := s.mails.CreateMail(mail); err != nil {
		return nil, fmt.Errorf("%w: persist metadata: %w", ErrDeliveryFailed, err)
	}

	if s.metrics != nil {
		s.metrics.MailSent()
	}
	if s.notifier != nil {
		s.notifier.NotifyNewMail(recipient.ID, mail)
	}

	s.log.Info("mail sent",
		zap.String("mail_id", mail.ID),
		zap.String("sender_ns", mail.SenderNs),
		zap.String("recipient_ns", mail.RecipientNs),
		zap.Int("attachments", len(attachments)),
	)
	return mail, nil
}

// uploadAttachments 并发上传全部附件，任一失败则整体失败。
// 已上传成功的兄弟附件会留下孤儿 blob，由外部存储的保留期自行过期。
func (s *MailService) uploadAttachments(ctx context.Context, inputs []AttachmentInput) ([]domain.Attachment, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	attachments := make([]domain.Attachment, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			// 附件是二进制内容，先转 base64 再走文本载荷通道
			encoded := base64.StdEncoding.EncodeToString(input.Data)
			blobID, err := s.uploadBlob(gctx, []byte(encoded))
			if err != nil {
				return err
			}
			attachments[i] = domain.Attachment{
				ID:       uuid.New().String(),
				Position: i,
				BlobID:   blobID,
				FileName: input.FileName,
				FileType: input.FileType,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (s *MailService) uploadBlob(ctx context.Context, payload []byte) (string, error) {
	start := time.Now()
	blobID, err := s.blobs.Put(ctx, payload)
	if s.metrics != nil {
		s.metrics.ObserveBlobOp("upload", time.Since(start), err == nil)
	}
	return blobID, err
}

func (s *MailService) downloadBlob(ctx context.Context, blobID string) ([]byte, error) {
	start := time.Now()
	payload, err := s.blobs.Get(ctx, blobID)
	if s.metrics != nil {
		s.metrics.ObserveBlobOp("download", time.Since(start), err == nil)
	}
	return payload, err
}

// FetchedAttachment 是读取路径上还原后的附件。
type FetchedAttachment struct {
	FileName string
	FileType string
	Data     []byte
}

// FetchedMail 是读取路径上重组完成的邮件。
type FetchedMail struct {
	ID          string
	Subject     string
	Body        string
	Digest      string
	SenderNs    string
	RecipientNs string
	ReadAt      *time.Time
	CreatedAt   time.Time
	Attachments []FetchedAttachment
}

// FetchMailByID 读取并重组一封邮件：下载正文解密，下载附件还原，
// 接收方首次读取时写入已读时间。摘要字段只对接收方返回。
func (s *MailService) FetchMailByID(ctx context.Context, mailID, requesterID string) (*FetchedMail, error) {
	mail, err := s.mails.GetMail(mailID)
	if err != nil {
		return nil, err
	}

	envelope, err := s.downloadBlob(ctx, mail.BlobID)
	if err != nil {
		return nil, fmt.Errorf("%w: download body: %w", ErrMailAssembly, err)
	}
	body, err := s.codec.Open(string(envelope))
	if err != nil {
		return nil, fmt.Errorf("%w: open body: %w", ErrMailAssembly, err)
	}

	attachments, err := s.downloadAttachments(ctx, mail.Attachments)
	if err != nil {
		return nil, fmt.Errorf("%w: download attachments: %w", ErrMailAssembly, err)
	}

	fetched := &FetchedMail{
		ID:          mail.ID,
		Subject:     mail.Subject,
		Body:        string(body),
		SenderNs:    mail.SenderNs,
		RecipientNs: mail.RecipientNs,
		ReadAt:      mail.ReadAt,
		CreatedAt:   mail.CreatedAt,
		Attachments: attachments,
	}

	if mail.IsRecipient(requesterID) {
		// 摘要只对接收方可见
		fetched.Digest = mail.Digest

		now := time.Now().UTC()
		wrote, err := s.mails.MarkMailReadOnce(mail.ID, now)
		if err != nil {
			return nil, err
		}
		if wrote {
			fetched.ReadAt = &now
		}
	}
	return fetched, nil
}

func (s *MailService) downloadAttachments(ctx context.Context, records []domain.Attachment) ([]FetchedAttachment, error) {
	if len(records) == 0 {
		return nil, nil
	}

	attachments := make([]FetchedAttachment, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			encoded, err := s.downloadBlob(gctx, record.BlobID)
			if err != nil {
				return err
			}
			data, err := base64.StdEncoding.DecodeString(string(encoded))
			if err != nil {
				return fmt.Errorf("decode attachment %s: %w", record.ID, err)
			}
			attachments[i] = FetchedAttachment{
				FileName: record.FileName,
				FileType: record.FileType,
				Data:     data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return attachments, nil
}

// FetchInbox 返回调用者收件箱的摘要列表，不触达外部存储。
func (s *MailService) FetchInbox(userID string) ([]domain.Mail, error) {
	if _, err := s.users.GetUserByID(userID); err != nil {
		return nil, err
	}
	return s.mails.ListInbox(userID)
}

// FetchOutbox 返回调用者发件箱的摘要列表，不触达外部存储。
func (s *MailService) FetchOutbox(userID string) ([]domain.Mail, error) {
	if _, err := s.users.GetUserByID(userID); err != nil {
		return nil, err
	}
	return s.mails.ListOutbox(userID)
}

// MarkManyAsRead 批量标记已读，只作用于调用者是接收方且未读的邮件。
// 没有任何行被更新时按未找到处理。
func (s *MailService) MarkManyAsRead(ids []string, requesterID string) error {
	if len(ids) == 0 {
		return storage.ErrMailNotFound
	}
	affected, err := s.mails.MarkManyRead(ids, requesterID, time.Now().UTC())
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrMailNotFound
	}
	return nil
}

// DeleteForSender 从发送方视角删除邮件，双边都删除后物理回收。
func (s *MailService) DeleteForSender(ids []string, requesterID string) error {
	return s.deleteSide(ids, requesterID, s.mails.RetireForSender)
}

// DeleteForRecipient 从接收方视角删除邮件，双边都删除后物理回收。
func (s *MailService) DeleteForRecipient(ids []string, requesterID string) error {
	return s.deleteSide(ids, requesterID, s.mails.RetireForRecipient)
}

func (s *MailService) deleteSide(ids []string, requesterID string, retire func([]string, string) (int64, error)) error {
	if len(ids) == 0 {
		return storage.ErrMailNotFound
	}
	affected, err := retire(ids, requesterID)
	if err != nil {
		return err
	}

	// 回收不依赖本次 retire 的结果，顺带清理历史遗留的孤儿记录
	reaped, err := s.mails.ReapOrphans()
	if err != nil {
		return err
	}
	if reaped > 0 {
		if s.metrics != nil {
			s.metrics.MailReaped(reaped)
		}
		s.log.Info("reaped orphaned mails", zap.Int64("count", reaped))
	}

	if affected == 0 {
		return storage.ErrMailNotFound
	}
	return nil
}

// AddressListFeatures 是白名单/黑名单的咨询性查询结果。
type AddressListFeatures struct {
	IsWhitelisted bool `json:"isWhitelisted"`
	IsBlacklisted bool `json:"isBlacklisted"`
}

// GetAddressListFeatures 查询发送方在接收方名单上的状态。
// 结果仅供展示，发送路径不会用它拦截投递。
func (s *MailService) GetAddressListFeatures(recipientNs, senderID string) (*AddressListFeatures, error) {
	recipient, err := s.users.GetUserByMailNs(recipientNs)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	sender, err := s.users.GetUserByID(senderID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrSenderNotFound
		}
		return nil, err
	}

	senderNs := sender.Ns()
	return &AddressListFeatures{
		IsWhitelisted: recipient.OnWhitelist(senderNs),
		IsBlacklisted: recipient.OnBlacklist(senderNs),
	}, nil
}
