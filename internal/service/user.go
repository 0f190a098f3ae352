package service

import (
	"errors"

	"go.uber.org/zap"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/storage"
)

var (
	ErrSelfListing    = errors.New("cannot list own namespace")
	ErrTargetNotFound = errors.New("target namespace not found")
)

// UserService 封装身份档案相关业务操作。
type UserService struct {
	users storage.UserRepository
	log   *zap.Logger
}

// NewUserService 创建用户业务服务。
func NewUserService(users storage.UserRepository, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{users: users, log: log}
}

// Get 根据 ID 获取用户档案。
func (s *UserService) Get(id string) (*domain.User, error) {
	return s.users.GetUserByID(id)
}

// GetByMailNs 根据命名空间获取用户档案。
func (s *UserService) GetByMailNs(ns string) (*domain.User, error) {
	return s.users.GetUserByMailNs(ns)
}

// SetMailNs 绑定邮件命名空间，只允许绑定一次。
func (s *UserService) SetMailNs(id, ns string) error {
	if err := domain.ValidateMailNs(ns); err != nil {
		return err
	}
	if err := s.users.SetMailNs(id, ns); err != nil {
		return err
	}
	s.log.Info("mail namespace bound", zap.String("user_id", id), zap.String("ns", ns))
	return nil
}

// SetMailFee 更新收件费用。
func (s *UserService) SetMailFee(id string, fee float64) error {
	if err := domain.ValidateMailFee(fee); err != nil {
		return err
	}
	return s.users.SetMailFee(id, fee)
}

// GetMailFeeByNs 按命名空间查询收件费用，供发信前展示。
func (s *UserService) GetMailFeeByNs(ns string) (float64, error) {
	user, err := s.users.GetUserByMailNs(ns)
	if err != nil {
		return 0, err
	}
	return user.MailFee, nil
}

// SetAvatarURL 更新头像地址。
func (s *UserService) SetAvatarURL(id, url string) error {
	return s.users.SetAvatarURL(id, url)
}

// AddToWhitelist 把目标命名空间加入调用者的白名单。
func (s *UserService) AddToWhitelist(id, ns string) error {
	if err := s.checkListTarget(id, ns); err != nil {
		return err
	}
	return s.users.AddToWhitelist(id, ns)
}

// AddToBlacklist 把目标命名空间加入调用者的黑名单。
func (s *UserService) AddToBlacklist(id, ns string) error {
	if err := s.checkListTarget(id, ns); err != nil {
		return err
	}
	return s.users.AddToBlacklist(id, ns)
}

// RemoveFromWhitelist 把目标命名空间移出调用者的白名单。
func (s *UserService) RemoveFromWhitelist(id, ns string) error {
	return s.users.RemoveFromWhitelist(id, ns)
}

// RemoveFromBlacklist 把目标命名空间移出调用者的黑名单。
func (s *UserService) RemoveFromBlacklist(id, ns string) error {
	return s.users.RemoveFromBlacklist(id, ns)
}

// checkListTarget 校验名单目标：不能是自己，且必须能解析到真实用户。
func (s *UserService) checkListTarget(id, ns string) error {
	if err := domain.ValidateMailNs(ns); err != nil {
		return err
	}

	caller, err := s.users.GetUserByID(id)
	if err != nil {
		return err
	}
	if caller.Ns() == ns {
		return ErrSelfListing
	}

	if _, err := s.users.GetUserByMailNs(ns); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrTargetNotFound
		}
		return err
	}
	return nil
}
