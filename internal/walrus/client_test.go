package walrus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(Config{
		PublisherURL:  server.URL,
		AggregatorURL: server.URL,
		Timeout:       2 * time.Second,
	}, nil)
	return client, server
}

func TestClient_Put(t *testing.T) {
	t.Run("上传成功返回blobId", func(t *testing.T) {
		var gotBody map[string]string
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/v1/blobs", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"newlyCreated":{"blobObject":{"blobId":"blob-42"}}}`))
		}))

		blobID, err := client.Put(context.Background(), []byte("sealed payload"))
		require.NoError(t, err)
		assert.Equal(t, "blob-42", blobID)
		assert.Equal(t, "sealed payload", gotBody["message"])
	})

	t.Run("非2xx返回不可用错误", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := client.Put(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("响应缺少blobId返回不可用错误", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))

		_, err := client.Put(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("存储不可达返回不可用错误", func(t *testing.T) {
		client := New(Config{
			PublisherURL:  "http://127.0.0.1:1",
			AggregatorURL: "http://127.0.0.1:1",
			Timeout:       200 * time.Millisecond,
		}, nil)

		_, err := client.Put(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestClient_Get(t *testing.T) {
	t.Run("下载成功返回原始载荷", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v1/blobs/blob-42", r.URL.Path)
			w.Write([]byte(`{"message":"sealed payload"}`))
		}))

		payload, err := client.Get(context.Background(), "blob-42")
		require.NoError(t, err)
		assert.Equal(t, "sealed payload", string(payload))
	})

	t.Run("404返回未找到", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrBlobNotFound)
	})

	t.Run("5xx返回不可用错误", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := client.Get(context.Background(), "blob-42")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}
