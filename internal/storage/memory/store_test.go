package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/storage"
)

func newTestUser(ns string) *domain.User {
	user := &domain.User{
		ID:      uuid.New().String(),
		Address: "0x" + uuid.New().String()[:8],
	}
	if ns != "" {
		user.MailNs = &ns
	}
	return user
}

func newTestMail(senderID, recipientID string) *domain.Mail {
	return &domain.Mail{
		ID:          uuid.New().String(),
		BlobID:      uuid.New().String(),
		Subject:     "hello",
		SenderID:    &senderID,
		RecipientID: &recipientID,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestUserLifecycle(t *testing.T) {
	store := NewStore()

	user := newTestUser("alice@suimail")
	require.NoError(t, store.CreateUser(user))

	t.Run("重复地址应该失败", func(t *testing.T) {
		dup := newTestUser("")
		dup.Address = user.Address
		assert.ErrorIs(t, store.CreateUser(dup), storage.ErrAddressExists)
	})

	t.Run("按地址和命名空间查询", func(t *testing.T) {
		byAddr, err := store.GetUserByAddress(user.Address)
		require.NoError(t, err)
		assert.Equal(t, user.ID, byAddr.ID)

		byNs, err := store.GetUserByMailNs("alice@suimail")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byNs.ID)
	})

	t.Run("查询结果是快照", func(t *testing.T) {
		got, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		got.Whitelist = append(got.Whitelist, "mutated@suimail")

		again, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.Empty(t, again.Whitelist)
	})
}

func TestSetMailNsOnce(t *testing.T) {
	store := NewStore()

	user := newTestUser("")
	require.NoError(t, store.CreateUser(user))

	require.NoError(t, store.SetMailNs(user.ID, "bob@suimail"))

	t.Run("已绑定后再次设置应该失败", func(t *testing.T) {
		assert.ErrorIs(t, store.SetMailNs(user.ID, "other@suimail"), storage.ErrMailNsAlreadySet)
	})

	t.Run("命名空间被占用时应该失败", func(t *testing.T) {
		second := newTestUser("")
		require.NoError(t, store.CreateUser(second))
		assert.ErrorIs(t, store.SetMailNs(second.ID, "bob@suimail"), storage.ErrMailNsTaken)
	})
}

func TestListMutualExclusion(t *testing.T) {
	store := NewStore()

	user := newTestUser("carol@suimail")
	require.NoError(t, store.CreateUser(user))

	require.NoError(t, store.AddToWhitelist(user.ID, "dave@suimail"))

	t.Run("重复加入应该返回冲突", func(t *testing.T) {
		assert.ErrorIs(t, store.AddToWhitelist(user.ID, "dave@suimail"), storage.ErrAlreadyListed)
	})

	t.Run("加入黑名单会移出白名单", func(t *testing.T) {
		require.NoError(t, store.AddToBlacklist(user.ID, "dave@suimail"))

		got, err := store.GetUserByID(user.ID)
		require.NoError(t, err)
		assert.False(t, got.OnWhitelist("dave@suimail"))
		assert.True(t, got.OnBlacklist("dave@suimail"))
	})

	t.Run("移除不存在的条目是空操作", func(t *testing.T) {
		assert.NoError(t, store.RemoveFromWhitelist(user.ID, "nobody@suimail"))
	})
}

func TestIncrementAuthTokenVersionConcurrent(t *testing.T) {
	store := NewStore()

	user := newTestUser("eve@suimail")
	require.NoError(t, store.CreateUser(user))

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.IncrementAuthTokenVersion(user.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), got.AuthTokenVersion)
}

func TestMarkMailReadOnce(t *testing.T) {
	store := NewStore()

	mail := newTestMail("sender-1", "recipient-1")
	require.NoError(t, store.CreateMail(mail))

	first, err := store.MarkMailReadOnce(mail.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, first)

	t.Run("第二次标记不再写入", func(t *testing.T) {
		second, err := store.MarkMailReadOnce(mail.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, second)
	})

	t.Run("不存在的邮件返回未找到", func(t *testing.T) {
		_, err := store.MarkMailReadOnce("missing", time.Now())
		assert.ErrorIs(t, err, storage.ErrMailNotFound)
	})
}

func TestMarkManyReadScoped(t *testing.T) {
	store := NewStore()

	mine := newTestMail("sender-1", "me")
	other := newTestMail("sender-1", "someone-else")
	require.NoError(t, store.CreateMail(mine))
	require.NoError(t, store.CreateMail(other))

	affected, err := store.MarkManyRead([]string{mine.ID, other.ID, "missing"}, "me", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	got, err := store.GetMail(other.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReadAt)
}

func TestRetireAndReap(t *testing.T) {
	store := NewStore()

	mail := newTestMail("sender-1", "recipient-1")
	require.NoError(t, store.CreateMail(mail))

	t.Run("单边删除后记录仍然保留", func(t *testing.T) {
		affected, err := store.RetireForSender([]string{mail.ID}, "sender-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)

		reaped, err := store.ReapOrphans()
		require.NoError(t, err)
		assert.Zero(t, reaped)

		got, err := store.GetMail(mail.ID)
		require.NoError(t, err)
		assert.Nil(t, got.SenderID)
		require.NotNil(t, got.RecipientID)
	})

	t.Run("双边删除后记录被回收", func(t *testing.T) {
		affected, err := store.RetireForRecipient([]string{mail.ID}, "recipient-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)

		reaped, err := store.ReapOrphans()
		require.NoError(t, err)
		assert.Equal(t, int64(1), reaped)

		_, err = store.GetMail(mail.ID)
		assert.ErrorIs(t, err, storage.ErrMailNotFound)
	})
}

func TestInboxOutboxOrdering(t *testing.T) {
	store := NewStore()

	old := newTestMail("sender-1", "me")
	old.CreatedAt = time.Now().Add(-time.Hour)
	fresh := newTestMail("sender-1", "me")
	require.NoError(t, store.CreateMail(old))
	require.NoError(t, store.CreateMail(fresh))

	inbox, err := store.ListInbox("me")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, fresh.ID, inbox[0].ID)

	outbox, err := store.ListOutbox("sender-1")
	require.NoError(t, err)
	assert.Len(t, outbox, 2)
}

func TestIncrementRateLimit(t *testing.T) {
	store := NewStore()

	n1, err := store.IncrementRateLimit("ip:1.2.3.4", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n1)

	n2, err := store.IncrementRateLimit("ip:1.2.3.4", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n2)

	time.Sleep(70 * time.Millisecond)

	n3, err := store.IncrementRateLimit("ip:1.2.3.4", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n3)
}
