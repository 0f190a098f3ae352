package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/storage"
	"suimail/backend/internal/storage/memory"
)

func newUserFixture(t *testing.T) (*UserService, *memory.Store, *domain.User, *domain.User) {
	t.Helper()

	store := memory.NewStore()
	service := NewUserService(store, nil)

	makeUser := func(ns string) *domain.User {
		user := &domain.User{
			ID:      uuid.New().String(),
			Address: "0x" + uuid.New().String()[:12],
			MailNs:  &ns,
		}
		require.NoError(t, store.CreateUser(user))
		return user
	}
	return service, store, makeUser("alice@suimail"), makeUser("bob@suimail")
}

func TestSetMailNsValidatesAndBindsOnce(t *testing.T) {
	store := memory.NewStore()
	service := NewUserService(store, nil)

	user := &domain.User{ID: uuid.New().String(), Address: "0xabc"}
	require.NoError(t, store.CreateUser(user))

	t.Run("非法格式被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, service.SetMailNs(user.ID, "Bad Name"), domain.ErrInvalidMailNs)
		assert.ErrorIs(t, service.SetMailNs(user.ID, "alice"), domain.ErrInvalidMailNs)
	})

	require.NoError(t, service.SetMailNs(user.ID, "alice@suimail"))

	t.Run("绑定后不可更换", func(t *testing.T) {
		err := service.SetMailNs(user.ID, "other@suimail")
		assert.ErrorIs(t, err, storage.ErrMailNsAlreadySet)
	})
}

func TestSetMailFee(t *testing.T) {
	service, _, alice, _ := newUserFixture(t)

	require.NoError(t, service.SetMailFee(alice.ID, 2.5))

	fee, err := service.GetMailFeeByNs("alice@suimail")
	require.NoError(t, err)
	assert.Equal(t, 2.5, fee)

	t.Run("负数费用被拒绝", func(t *testing.T) {
		assert.ErrorIs(t, service.SetMailFee(alice.ID, -1), domain.ErrInvalidFee)
	})
}

func TestListTargetChecks(t *testing.T) {
	service, _, alice, _ := newUserFixture(t)

	t.Run("不能把自己加入名单", func(t *testing.T) {
		err := service.AddToWhitelist(alice.ID, "alice@suimail")
		assert.ErrorIs(t, err, ErrSelfListing)
	})

	t.Run("目标必须真实存在", func(t *testing.T) {
		err := service.AddToBlacklist(alice.ID, "ghost@suimail")
		assert.ErrorIs(t, err, ErrTargetNotFound)
	})
}

func TestListMutualExclusionThroughService(t *testing.T) {
	service, store, alice, _ := newUserFixture(t)

	require.NoError(t, service.AddToWhitelist(alice.ID, "bob@suimail"))

	t.Run("重复加入返回冲突", func(t *testing.T) {
		err := service.AddToWhitelist(alice.ID, "bob@suimail")
		assert.ErrorIs(t, err, storage.ErrAlreadyListed)
	})

	t.Run("转入黑名单后白名单自动清除", func(t *testing.T) {
		require.NoError(t, service.AddToBlacklist(alice.ID, "bob@suimail"))

		got, err := store.GetUserByID(alice.ID)
		require.NoError(t, err)
		assert.False(t, got.OnWhitelist("bob@suimail"))
		assert.True(t, got.OnBlacklist("bob@suimail"))
	})

	t.Run("移除后名单为空", func(t *testing.T) {
		require.NoError(t, service.RemoveFromBlacklist(alice.ID, "bob@suimail"))

		got, err := store.GetUserByID(alice.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Blacklist)
	})
}
