package domain

import "time"

// Mail 表示一封邮件的元数据记录。
//
// 正文密文存储在外部 blob 存储中，这里只保留 BlobID 引用；
// SenderID/RecipientID 各自可空，实现双边软删除：任意一方删除只置空
// 自己一侧的引用，两侧都为空后记录才会被物理回收。
// SenderNs/RecipientNs 是发送瞬间捕获的参与者快照，之后不再变化，
// 即使某一方软删除或改名，邮件的来源信息仍然可读。
type Mail struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	BlobID      string     `json:"blobId" gorm:"type:varchar(128);uniqueIndex;not null"` // 正文密文的 blob 引用
	Digest      string     `json:"digest,omitempty" gorm:"type:varchar(128)"`            // 关联链上交易摘要（可选）
	Subject     string     `json:"subject" gorm:"type:varchar(500);not null"`
	SenderID    *string    `json:"-" gorm:"type:varchar(36);index"`
	RecipientID *string    `json:"-" gorm:"type:varchar(36);index"`
	SenderNs    string     `json:"senderNs" gorm:"type:varchar(100)"`    // 参与者快照：发送方命名空间
	RecipientNs string     `json:"recipientNs" gorm:"type:varchar(100)"` // 参与者快照：接收方命名空间
	ReadAt      *time.Time `json:"readAt,omitempty"`                     // 至多设置一次
	CreatedAt   time.Time  `json:"createdAt"`

	// 附件列表与数量（不存 mails 表，由存储层单独装载）
	Attachments     []Attachment `json:"attachments,omitempty" gorm:"-"`
	AttachmentCount int          `json:"attachmentCount" gorm:"-"`
}

// Attachment 表示邮件附件的元数据，内容以原始字节存放在 blob 存储中。
type Attachment struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailID   string `json:"-" gorm:"type:varchar(36);index;not null"`
	Position int    `json:"-" gorm:"not null"` // 附件在邮件内的顺序
	BlobID   string `json:"blobId" gorm:"type:varchar(128);not null"`
	FileName string `json:"fileName" gorm:"type:varchar(255)"`
	FileType string `json:"fileType" gorm:"type:varchar(100)"` // MIME 类型
}

// IsRecipient 判断给定用户是否为记录中的接收方。
func (m *Mail) IsRecipient(userID string) bool {
	return m.RecipientID != nil && *m.RecipientID == userID
}

// IsSender 判断给定用户是否为记录中的发送方。
func (m *Mail) IsSender(userID string) bool {
	return m.SenderID != nil && *m.SenderID == userID
}

// Orphaned 判断双边引用是否都已置空（可被物理回收）。
func (m *Mail) Orphaned() bool {
	return m.SenderID == nil && m.RecipientID == nil
}
