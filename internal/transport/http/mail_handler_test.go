package httptransport

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suimail/backend/internal/domain"
	"suimail/backend/internal/mailcrypt"
	"suimail/backend/internal/middleware"
	"suimail/backend/internal/service"
	"suimail/backend/internal/storage/memory"
)

// stubBlobStore 内存 blob 存储，可注入上传/下载故障。
type stubBlobStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	puts     int
	failPut  bool
	failGet  bool
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{blobs: make(map[string][]byte)}
}

func (s *stubBlobStore) Put(ctx context.Context, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return "", errors.New("publisher unavailable")
	}
	s.puts++
	id := uuid.New().String()
	s.blobs[id] = append([]byte(nil), payload...)
	return id, nil
}

func (s *stubBlobStore) Get(ctx context.Context, blobID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errors.New("aggregator unavailable")
	}
	payload, ok := s.blobs[blobID]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return payload, nil
}

type handlerFixture struct {
	router *gin.Engine
	blobs  *stubBlobStore
	mails  *service.MailService

	sender    *domain.User
	recipient *domain.User
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	blobs := newStubBlobStore()
	codec, err := mailcrypt.NewCodec("unit-test-secret")
	require.NoError(t, err)

	mails := service.NewMailService(store, store, blobs, codec, nil)
	handler := NewMailHandler(mails, nil)

	f := &handlerFixture{blobs: blobs, mails: mails}
	f.sender = addFixtureUser(t, store, "alice@suimail")
	f.recipient = addFixtureUser(t, store, "bob@suimail")

	router := gin.New()
	// 测试里直接注入调用者身份，跳过令牌校验
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, f.sender.ID)
	})
	router.POST("/mail/send", handler.Send)
	router.GET("/mail/:id", handler.Get)
	f.router = router
	return f
}

func addFixtureUser(t *testing.T, store *memory.Store, ns string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:      uuid.New().String(),
		Address: "0x" + uuid.New().String()[:8],
		MailNs:  &ns,
	}
	require.NoError(t, store.CreateUser(user))
	return user
}

func sendForm(t *testing.T, f *handlerFixture, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/mail/send", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSendRejectsEmptyFieldsAtBoundary(t *testing.T) {
	f := newHandlerFixture(t)

	t.Run("空主题返回400且不进入发送流程", func(t *testing.T) {
		rec := sendForm(t, f, map[string]string{
			"recipientNs": "bob@suimail",
			"subject":     "   ",
			"body":        "正文",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, f.blobs.puts)
	})

	t.Run("空正文返回400且不进入发送流程", func(t *testing.T) {
		rec := sendForm(t, f, map[string]string{
			"recipientNs": "bob@suimail",
			"subject":     "问候",
			"body":        "",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, f.blobs.puts)
	})
}

func TestSendDeliveryFailureMapsToInternalError(t *testing.T) {
	f := newHandlerFixture(t)
	f.blobs.failPut = true

	rec := sendForm(t, f, map[string]string{
		"recipientNs": "bob@suimail",
		"subject":     "问候",
		"body":        "正文",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetAssemblyFailureMapsToInternalError(t *testing.T) {
	f := newHandlerFixture(t)

	mail, err := f.mails.SendMail(context.Background(), service.SendMailInput{
		SenderID:    f.sender.ID,
		RecipientNs: "bob@suimail",
		Subject:     "问候",
		Body:        "正文",
	})
	require.NoError(t, err)

	f.blobs.failGet = true
	req := httptest.NewRequest(http.MethodGet, "/mail/"+mail.ID, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
