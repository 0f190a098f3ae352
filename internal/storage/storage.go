package storage

import (
	"errors"
	"time"

	"suimail/backend/internal/domain"
)

var (
	// ErrUserNotFound 用户不存在错误
	ErrUserNotFound = errors.New("user not found")
	// ErrMailNotFound 邮件不存在错误
	ErrMailNotFound = errors.New("mail not found")
	// ErrAddressExists 钱包地址已注册错误
	ErrAddressExists = errors.New("address already exists")
	// ErrMailNsTaken 命名空间已被占用错误
	ErrMailNsTaken = errors.New("suimail namespace already exists")
	// ErrMailNsAlreadySet 用户已绑定命名空间错误（绑定只允许一次）
	ErrMailNsAlreadySet = errors.New("suimail namespace already set")
	// ErrAlreadyListed 命名空间已在目标名单中错误
	ErrAlreadyListed = errors.New("namespace already on list")
	// ErrBlobIDExists blobId 冲突错误
	ErrBlobIDExists = errors.New("blob id already exists")
)

// UserRepository 定义用户（钱包身份）数据存取操作。
//
// 所有写操作都是具名的：不提供“读出-改字段-存回”式的整体更新。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByAddress(address string) (*domain.User, error)
	GetUserByMailNs(ns string) (*domain.User, error)

	// SetMailNs 绑定命名空间，只允许绑定一次
	SetMailNs(id, ns string) error
	SetMailFee(id string, fee float64) error
	SetAvatarURL(id, url string) error

	// 名单操作在单条用户记录内保持互斥：加入一个名单会先从另一个名单移除
	AddToWhitelist(id, ns string) error
	AddToBlacklist(id, ns string) error
	RemoveFromWhitelist(id, ns string) error
	RemoveFromBlacklist(id, ns string) error

	// IncrementAuthTokenVersion 原子地自增会话围栏版本号并返回新值
	IncrementAuthTokenVersion(id string) (int64, error)
}

// MailRepository 定义邮件元数据存取操作。
type MailRepository interface {
	CreateMail(mail *domain.Mail) error
	GetMail(id string) (*domain.Mail, error)
	ListInbox(userID string) ([]domain.Mail, error)
	ListOutbox(userID string) ([]domain.Mail, error)

	// MarkMailReadOnce 仅当 readAt 未设置时写入当前时间，返回是否真正执行了写入
	MarkMailReadOnce(id string, at time.Time) (bool, error)
	// MarkManyRead 批量条件更新，只影响调用者是接收方且未读的行，返回影响行数
	MarkManyRead(ids []string, recipientID string, at time.Time) (int64, error)

	// RetireForSender / RetireForRecipient 置空调用者一侧的引用（双边软删除），返回影响行数
	RetireForSender(ids []string, senderID string) (int64, error)
	RetireForRecipient(ids []string, recipientID string) (int64, error)
	// ReapOrphans 物理删除双边引用都为空的记录，幂等
	ReapOrphans() (int64, error)
}

// RateLimitRepository 定义限流计数操作。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
}

// Store 定义完整的存储接口。
type Store interface {
	UserRepository
	MailRepository
	RateLimitRepository

	Close() error
	Health() error
}
