package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/storage"
)

// Store PostgreSQL 存储实现
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	// 配置 GORM
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	// 连接数据库
	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	// 自动迁移数据库表
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Mail{},
		&domain.Attachment{},
	)
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("address = ?", user.Address).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrAddressExists
		}
		if user.MailNs != nil {
			if err := tx.Model(&domain.User{}).Where("mail_ns = ?", *user.MailNs).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return storage.ErrMailNsTaken
			}
		}
		return tx.Create(user).Error
	})
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.getUser("id = ?", id)
}

// GetUserByAddress 根据钱包地址获取用户
func (s *Store) GetUserByAddress(address string) (*domain.User, error) {
	return s.getUser("address = ?", address)
}

// GetUserByMailNs 根据命名空间获取用户
func (s *Store) GetUserByMailNs(ns string) (*domain.User, error) {
	return s.getUser("mail_ns = ?", ns)
}

func (s *Store) getUser(query string, arg any) (*domain.User, error) {
	var user domain.User
	err := s.db.Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetMailNs 绑定命名空间，只允许绑定一次
func (s *Store) SetMailNs(id, ns string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("mail_ns = ?", ns).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrMailNsTaken
		}

		// 条件更新，只有未绑定的行会被命中
		result := tx.Model(&domain.User{}).
			Where("id = ? AND mail_ns IS NULL", id).
			Update("mail_ns", ns)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			if err := tx.Where("id = ?", id).First(&domain.User{}).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return storage.ErrUserNotFound
				}
				return err
			}
			return storage.ErrMailNsAlreadySet
		}
		return nil
	})
}

// SetMailFee 更新收件费用
func (s *Store) SetMailFee(id string, fee float64) error {
	return s.updateUserColumn(id, "mail_fee", fee)
}

// SetAvatarURL 更新头像地址
func (s *Store) SetAvatarURL(id, url string) error {
	return s.updateUserColumn(id, "avatar_url", url)
}

func (s *Store) updateUserColumn(id, column string, value any) error {
	result := s.db.Model(&domain.User{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// AddToWhitelist 将命名空间加入白名单，并保证与黑名单互斥
func (s *Store) AddToWhitelist(id, ns string) error {
	return s.mutateLists(id, func(user *domain.User) error {
		if user.Whitelist.Contains(ns) {
			return storage.ErrAlreadyListed
		}
		user.Blacklist = user.Blacklist.Without(ns)
		user.Whitelist = append(user.Whitelist, ns)
		return nil
	})
}

// AddToBlacklist 将命名空间加入黑名单，并保证与白名单互斥
func (s *Store) AddToBlacklist(id, ns string) error {
	return s.mutateLists(id, func(user *domain.User) error {
		if user.Blacklist.Contains(ns) {
			return storage.ErrAlreadyListed
		}
		user.Whitelist = user.Whitelist.Without(ns)
		user.Blacklist = append(user.Blacklist, ns)
		return nil
	})
}

// RemoveFromWhitelist 将命名空间移出白名单
func (s *Store) RemoveFromWhitelist(id, ns string) error {
	return s.mutateLists(id, func(user *domain.User) error {
		user.Whitelist = user.Whitelist.Without(ns)
		return nil
	})
}

// RemoveFromBlacklist 将命名空间移出黑名单
func (s *Store) RemoveFromBlacklist(id, ns string) error {
	return s.mutateLists(id, func(user *domain.User) error {
		user.Blacklist = user.Blacklist.Without(ns)
		return nil
	})
}

// mutateLists 在行锁事务内读改写名单字段，避免并发覆盖
func (s *Store) mutateLists(id string, mutate func(*domain.User) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var user domain.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrUserNotFound
			}
			return err
		}

		if err := mutate(&user); err != nil {
			return err
		}

		return tx.Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
			"whitelist": user.Whitelist,
			"blacklist": user.Blacklist,
		}).Error
	})
}

// IncrementAuthTokenVersion 原子地自增会话围栏版本号并返回新值
func (s *Store) IncrementAuthTokenVersion(id string) (int64, error) {
	var version int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.User{}).
			Where("id = ?", id).
			UpdateColumn("auth_token_version", gorm.Expr("auth_token_version + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}

		var user domain.User
		if err := tx.Select("auth_token_version").Where("id = ?", id).First(&user).Error; err != nil {
			return err
		}
		version = user.AuthTokenVersion
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// ========== Mail Repository ==========

// CreateMail 插入新的邮件元数据记录和附件记录
func (s *Store) CreateMail(mail *domain.Mail) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Mail{}).Where("blob_id = ?", mail.BlobID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return storage.ErrBlobIDExists
		}

		if err := tx.Create(mail).Error; err != nil {
			return err
		}
		for i := range mail.Attachments {
			mail.Attachments[i].MailID = mail.ID
			if err := tx.Create(&mail.Attachments[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMail 获取单封邮件（含附件）
func (s *Store) GetMail(id string) (*domain.Mail, error) {
	var mail domain.Mail
	err := s.db.Where("id = ?", id).First(&mail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMailNotFound
		}
		return nil, err
	}

	if err := s.db.Where("mail_id = ?", id).Order("position ASC").Find(&mail.Attachments).Error; err != nil {
		return nil, err
	}
	mail.AttachmentCount = len(mail.Attachments)
	return &mail, nil
}

// ListInbox 返回调用者作为接收方的全部邮件，按创建时间倒序
func (s *Store) ListInbox(userID string) ([]domain.Mail, error) {
	return s.listMails("recipient_id = ?", userID)
}

// ListOutbox 返回调用者作为发送方的全部邮件，按创建时间倒序
func (s *Store) ListOutbox(userID string) ([]domain.Mail, error) {
	return s.listMails("sender_id = ?", userID)
}

func (s *Store) listMails(query, userID string) ([]domain.Mail, error) {
	var mails []domain.Mail
	err := s.db.Where(query, userID).Order("created_at DESC").Find(&mails).Error
	if err != nil {
		return nil, err
	}
	if len(mails) == 0 {
		return mails, nil
	}

	// 一次查询统计全部附件数，避免 N+1
	ids := make([]string, 0, len(mails))
	for _, m := range mails {
		ids = append(ids, m.ID)
	}
	type attachmentCount struct {
		MailID string
		Total  int
	}
	var counts []attachmentCount
	err = s.db.Model(&domain.Attachment{}).
		Select("mail_id, COUNT(*) as total").
		Where("mail_id IN ?", ids).
		Group("mail_id").
		Find(&counts).Error
	if err != nil {
		return nil, err
	}
	byMail := make(map[string]int, len(counts))
	for _, c := range counts {
		byMail[c.MailID] = c.Total
	}
	for i := range mails {
		mails[i].AttachmentCount = byMail[mails[i].ID]
	}
	return mails, nil
}

// MarkMailReadOnce 仅当 read_at 未设置时写入，返回是否执行了写入
func (s *Store) MarkMailReadOnce(id string, at time.Time) (bool, error) {
	result := s.db.Model(&domain.Mail{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&domain.Mail{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		if count == 0 {
			return false, storage.ErrMailNotFound
		}
		return false, nil
	}
	return true, nil
}

// MarkManyRead 批量条件更新，只影响调用者是接收方且未读的行
func (s *Store) MarkManyRead(ids []string, recipientID string, at time.Time) (int64, error) {
	result := s.db.Model(&domain.Mail{}).
		Where("id IN ? AND recipient_id = ? AND read_at IS NULL", ids, recipientID).
		Update("read_at", at)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// RetireForSender 置空调用者作为发送方的引用
func (s *Store) RetireForSender(ids []string, senderID string) (int64, error) {
	return s.retire("sender_id", ids, senderID)
}

// RetireForRecipient 置空调用者作为接收方的引用
func (s *Store) RetireForRecipient(ids []string, recipientID string) (int64, error) {
	return s.retire("recipient_id", ids, recipientID)
}

func (s *Store) retire(column string, ids []string, userID string) (int64, error) {
	result := s.db.Model(&domain.Mail{}).
		Where("id IN ? AND "+column+" = ?", ids, userID).
		Update(column, nil)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ReapOrphans 物理删除双边引用都为空的记录及其附件
func (s *Store) ReapOrphans() (int64, error) {
	var reaped int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var ids []string
		err := tx.Model(&domain.Mail{}).
			Where("sender_id IS NULL AND recipient_id IS NULL").
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("mail_id IN ?", ids).Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&domain.Mail{})
		if result.Error != nil {
			return result.Error
		}
		reaped = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reaped, nil
}

// ========== RateLimit Repository ==========

// IncrementRateLimit 数据库实现不承载限流计数，由 Redis 层提供
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	return 0, fmt.Errorf("rate limiting is not supported by the database store")
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
