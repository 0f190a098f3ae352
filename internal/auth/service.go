package auth

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"suimail/backend/internal/auth/jwt"
	"suimail/backend/internal/domain"
	"suimail/backend/internal/monitoring"
	"suimail/backend/internal/storage"
)

var (
	// ErrTokenRevoked 令牌已被后续登录作废
	ErrTokenRevoked = errors.New("token revoked")
	// ErrInvalidToken 无效的令牌
	ErrInvalidToken = errors.New("invalid token")
)

// Service 钱包登录与会话围栏服务
type Service struct {
	users   storage.UserRepository
	tokens  *jwt.Manager
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewService 创建认证服务
func NewService(users storage.UserRepository, tokens *jwt.Manager, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		log:    log,
	}
}

// SetMetrics 设置监控指标收集器（可选）
func (s *Service) SetMetrics(metrics *monitoring.Metrics) {
	s.metrics = metrics
}

// TokenResponse 登录结果
type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expiresIn"` // 秒
	User      *domain.User `json:"user"`
}

// Login 钱包地址登录。首次出现的地址会创建身份并分配命名空间。
// 每次登录都推进会话围栏，使之前签发的全部令牌立即失效。
func (s *Service) Login(address string) (*TokenResponse, error) {
	if err := domain.ValidateAddress(address); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByAddress(address)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			return nil, err
		}
		user, err = s.register(address)
		if err != nil {
			return nil, err
		}
	}

	// 围栏前移后重新读版本，确保令牌携带的是推进后的值
	version, err := s.users.IncrementAuthTokenVersion(user.ID)
	if err != nil {
		return nil, err
	}
	user.AuthTokenVersion = version

	token, err := s.tokens.Generate(user.ID, version)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordLogin()
	}
	s.log.Info("wallet login",
		zap.String("user_id", user.ID),
		zap.String("address", address),
		zap.Int64("fence_version", version),
	)

	return &TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.tokens.Expiry().Seconds()),
		User:      user,
	}, nil
}

// register 创建新身份并分配一个未占用的随机命名空间
func (s *Service) register(address string) (*domain.User, error) {
	ns, err := s.generateMailNs()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		Address:   address,
		MailNs:    &ns,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("ns", ns),
	)
	return user, nil
}

// generateMailNs 生成 5 位 base36 命名空间并检查碰撞
func (s *Service) generateMailNs() (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		// 顶层 rand 并发安全，注册可能在多个登录请求中同时走到这里
		seed := strconv.FormatInt(time.Now().UnixNano(), 36) +
			strconv.FormatInt(rand.Int63(), 36)
		ns := seed[len(seed)-5:] + domain.NsSuffix

		_, err := s.users.GetUserByMailNs(ns)
		if errors.Is(err, storage.ErrUserNotFound) {
			return ns, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("failed to allocate mail namespace")
}

// VerifyToken 验证令牌并加载用户。令牌版本必须与用户当前围栏版本
// 完全一致，任何不一致都视为已作废。
func (s *Service) VerifyToken(tokenString string) (*domain.User, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, err
		}
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if claims.Version != user.AuthTokenVersion {
		if s.metrics != nil {
			s.metrics.RecordTokenRevocation()
		}
		return nil, ErrTokenRevoked
	}
	return user, nil
}
