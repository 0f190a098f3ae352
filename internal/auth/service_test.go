package auth

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suimail/backend/internal/auth/jwt"
	"suimail/backend/internal/domain"
	"suimail/backend/internal/storage/memory"
)

const testAddress = "0x3f2a9b0c1d2e3f4a5b6c7d8e9f0a1b2c3d4e5f6a"

func newTestService() *Service {
	manager := jwt.NewManager(strings.Repeat("a", 32), "test", 15*time.Minute)
	return NewService(memory.NewStore(), manager, nil)
}

func TestLoginCreatesIdentity(t *testing.T) {
	service := newTestService()

	resp, err := service.Login(testAddress)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.User.ID)
	assert.Equal(t, testAddress, resp.User.Address)

	t.Run("创建时自动分配命名空间", func(t *testing.T) {
		require.NotNil(t, resp.User.MailNs)
		ns := *resp.User.MailNs
		assert.True(t, strings.HasSuffix(ns, domain.NsSuffix))
		assert.Len(t, strings.TrimSuffix(ns, domain.NsSuffix), 5)
	})

	t.Run("再次登录复用同一身份", func(t *testing.T) {
		again, err := service.Login(testAddress)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, again.User.ID)
		assert.Equal(t, *resp.User.MailNs, *again.User.MailNs)
	})
}

func TestLoginRejectsInvalidAddress(t *testing.T) {
	service := newTestService()

	_, err := service.Login("not-a-wallet")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestFenceVersionAdvances(t *testing.T) {
	service := newTestService()

	first, err := service.Login(testAddress)
	require.NoError(t, err)
	second, err := service.Login(testAddress)
	require.NoError(t, err)

	assert.Greater(t, second.User.AuthTokenVersion, first.User.AuthTokenVersion)
}

func TestVerifyToken(t *testing.T) {
	service := newTestService()

	first, err := service.Login(testAddress)
	require.NoError(t, err)

	user, err := service.VerifyToken(first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, user.ID)

	t.Run("再次登录后旧令牌被围栏作废", func(t *testing.T) {
		second, err := service.Login(testAddress)
		require.NoError(t, err)

		_, err = service.VerifyToken(first.Token)
		assert.ErrorIs(t, err, ErrTokenRevoked)

		_, err = service.VerifyToken(second.Token)
		assert.NoError(t, err)
	})

	t.Run("伪造令牌被拒绝", func(t *testing.T) {
		_, err := service.VerifyToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGenerateMailNsAvoidsCollision(t *testing.T) {
	service := newTestService()

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		ns, err := service.generateMailNs()
		require.NoError(t, err)
		assert.NotContains(t, seen, ns)
		seen[ns] = struct{}{}
	}
}

func TestGenerateMailNsConcurrent(t *testing.T) {
	service := newTestService()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				_, err := service.generateMailNs()
				if err != nil {
					errs[i] = err
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}
