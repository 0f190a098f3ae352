package memory

import (
	"sort"
	"sync"
	"time"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/storage"
)

// Store 使用内存保存用户与邮件元数据，用于开发验证和单元测试。
type Store struct {
	mu        sync.RWMutex
	users     map[string]*domain.User // userID -> user
	byAddress map[string]string       // address -> userID
	byMailNs  map[string]string       // mailNs -> userID
	mails     map[string]*domain.Mail // mailID -> mail
	byBlobID  map[string]string       // blobID -> mailID

	rateLimits map[string]*rateLimitEntry
}

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	count     int64
	expiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*domain.User),
		byAddress:  make(map[string]string),
		byMailNs:   make(map[string]string),
		mails:      make(map[string]*domain.Mail),
		byBlobID:   make(map[string]string),
		rateLimits: make(map[string]*rateLimitEntry),
	}
}

// ========== User Repository ==========

// CreateUser 创建新用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byAddress[user.Address]; ok {
		return storage.ErrAddressExists
	}
	if user.MailNs != nil {
		if _, ok := s.byMailNs[*user.MailNs]; ok {
			return storage.ErrMailNsTaken
		}
	}

	clone := cloneUser(user)
	s.users[clone.ID] = clone
	s.byAddress[clone.Address] = clone.ID
	if clone.MailNs != nil {
		s.byMailNs[*clone.MailNs] = clone.ID
	}
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// GetUserByAddress 根据钱包地址获取用户。
func (s *Store) GetUserByAddress(address string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// GetUserByMailNs 根据命名空间获取用户。
func (s *Store) GetUserByMailNs(ns string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byMailNs[ns]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// SetMailNs 绑定命名空间，只允许绑定一次。
func (s *Store) SetMailNs(id, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	if user.MailNs != nil {
		return storage.ErrMailNsAlreadySet
	}
	if _, taken := s.byMailNs[ns]; taken {
		return storage.ErrMailNsTaken
	}

	bound := ns
	user.MailNs = &bound
	user.UpdatedAt = time.Now().UTC()
	s.byMailNs[ns] = id
	return nil
}

// SetMailFee 更新收件费用。
func (s *Store) SetMailFee(id string, fee float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.MailFee = fee
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// SetAvatarURL 更新头像地址。
func (s *Store) SetAvatarURL(id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.AvatarURL = url
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// AddToWhitelist 将命名空间加入白名单，并保证与黑名单互斥。
func (s *Store) AddToWhitelist(id, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	if user.Whitelist.Contains(ns) {
		return storage.ErrAlreadyListed
	}

	user.Blacklist = user.Blacklist.Without(ns)
	user.Whitelist = append(user.Whitelist, ns)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// AddToBlacklist 将命名空间加入黑名单，并保证与白名单互斥。
func (s *Store) AddToBlacklist(id, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	if user.Blacklist.Contains(ns) {
		return storage.ErrAlreadyListed
	}

	user.Whitelist = user.Whitelist.Without(ns)
	user.Blacklist = append(user.Blacklist, ns)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveFromWhitelist 将命名空间移出白名单，不存在时为空操作。
func (s *Store) RemoveFromWhitelist(id, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.Whitelist = user.Whitelist.Without(ns)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveFromBlacklist 将命名空间移出黑名单，不存在时为空操作。
func (s *Store) RemoveFromBlacklist(id, ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	user.Blacklist = user.Blacklist.Without(ns)
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementAuthTokenVersion 原子地自增会话围栏版本号并返回新值。
func (s *Store) IncrementAuthTokenVersion(id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return 0, storage.ErrUserNotFound
	}
	user.AuthTokenVersion++
	user.UpdatedAt = time.Now().UTC()
	return user.AuthTokenVersion, nil
}

// ========== Mail Repository ==========

// CreateMail 插入新的邮件元数据记录。
func (s *Store) CreateMail(mail *domain.Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byBlobID[mail.BlobID]; ok {
		return storage.ErrBlobIDExists
	}

	clone := cloneMail(mail)
	s.mails[clone.ID] = clone
	s.byBlobID[clone.BlobID] = clone.ID
	return nil
}

// GetMail 获取单封邮件（含附件）。
func (s *Store) GetMail(id string) (*domain.Mail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mail, ok := s.mails[id]
	if !ok {
		return nil, storage.ErrMailNotFound
	}
	return cloneMail(mail), nil
}

// ListInbox 返回调用者作为接收方的全部邮件，按创建时间倒序。
func (s *Store) ListInbox(userID string) ([]domain.Mail, error) {
	return s.listByRole(userID, func(m *domain.Mail) bool { return m.IsRecipient(userID) }), nil
}

// ListOutbox 返回调用者作为发送方的全部邮件，按创建时间倒序。
func (s *Store) ListOutbox(userID string) ([]domain.Mail, error) {
	return s.listByRole(userID, func(m *domain.Mail) bool { return m.IsSender(userID) }), nil
}

func (s *Store) listByRole(userID string, match func(*domain.Mail) bool) []domain.Mail {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Mail, 0)
	for _, mail := range s.mails {
		if match(mail) {
			clone := cloneMail(mail)
			clone.AttachmentCount = len(clone.Attachments)
			result = append(result, *clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// MarkMailReadOnce 仅当 readAt 未设置时写入，返回是否执行了写入。
func (s *Store) MarkMailReadOnce(id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mail, ok := s.mails[id]
	if !ok {
		return false, storage.ErrMailNotFound
	}
	if mail.ReadAt != nil {
		return false, nil
	}
	stamp := at
	mail.ReadAt = &stamp
	return true, nil
}

// MarkManyRead 批量条件更新，只影响调用者是接收方且未读的行。
func (s *Store) MarkManyRead(ids []string, recipientID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, id := range ids {
		mail, ok := s.mails[id]
		if !ok || !mail.IsRecipient(recipientID) || mail.ReadAt != nil {
			continue
		}
		stamp := at
		mail.ReadAt = &stamp
		affected++
	}
	return affected, nil
}

// RetireForSender 置空调用者作为发送方的引用。
func (s *Store) RetireForSender(ids []string, senderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, id := range ids {
		mail, ok := s.mails[id]
		if !ok || !mail.IsSender(senderID) {
			continue
		}
		mail.SenderID = nil
		affected++
	}
	return affected, nil
}

// RetireForRecipient 置空调用者作为接收方的引用。
func (s *Store) RetireForRecipient(ids []string, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	for _, id := range ids {
		mail, ok := s.mails[id]
		if !ok || !mail.IsRecipient(recipientID) {
			continue
		}
		mail.RecipientID = nil
		affected++
	}
	return affected, nil
}

// ReapOrphans 物理删除双边引用都为空的记录。
func (s *Store) ReapOrphans() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped int64
	for id, mail := range s.mails {
		if mail.Orphaned() {
			delete(s.byBlobID, mail.BlobID)
			delete(s.mails, id)
			reaped++
		}
	}
	return reaped, nil
}

// ========== RateLimit Repository ==========

// IncrementRateLimit 自增限流计数，窗口过期后重新计数。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		s.rateLimits[key] = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}
	entry.count++
	return entry.count, nil
}

// ========== 工具方法 ==========

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error { return nil }

// Health 检查存储健康状态（内存实现恒为健康）。
func (s *Store) Health() error { return nil }

// cloneUser 返回用户的深拷贝，避免调用方共享内部状态。
func cloneUser(u *domain.User) *domain.User {
	clone := *u
	if u.MailNs != nil {
		ns := *u.MailNs
		clone.MailNs = &ns
	}
	clone.Whitelist = append(domain.StringList(nil), u.Whitelist...)
	clone.Blacklist = append(domain.StringList(nil), u.Blacklist...)
	return &clone
}

// cloneMail 返回邮件的深拷贝。
func cloneMail(m *domain.Mail) *domain.Mail {
	clone := *m
	if m.SenderID != nil {
		id := *m.SenderID
		clone.SenderID = &id
	}
	if m.RecipientID != nil {
		id := *m.RecipientID
		clone.RecipientID = &id
	}
	if m.ReadAt != nil {
		at := *m.ReadAt
		clone.ReadAt = &at
	}
	clone.Attachments = append([]domain.Attachment(nil), m.Attachments...)
	return &clone
}
