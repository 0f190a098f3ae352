// Package walrus 封装外部 Walrus blob 存储的上传/下载客户端。
//
// 上传走 publisher 节点，下载走 aggregator 节点；存储按内容寻址，
// 上传成功后返回存储分配的 blobId。本层不做重试，也不在后续流程
// 失败时回收已上传的 blob，补偿策略属于调用方。
package walrus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnavailable blob 存储不可达或返回非预期状态
	ErrUnavailable = errors.New("blob store unavailable")
	// ErrBlobNotFound 存储中不存在该 blobId
	ErrBlobNotFound = errors.New("blob not found")
)

// Config 定义 Walrus 客户端配置。
type Config struct {
	PublisherURL  string        // 上传端点基地址
	AggregatorURL string        // 下载端点基地址
	Timeout       time.Duration // 单次请求超时
}

// Client Walrus HTTP 客户端。
type Client struct {
	publisherURL  string
	aggregatorURL string
	httpClient    *http.Client
	log           *zap.Logger
}

// New 创建 Walrus 客户端。
func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		publisherURL:  strings.TrimRight(cfg.PublisherURL, "/"),
		aggregatorURL: strings.TrimRight(cfg.AggregatorURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		log:           log,
	}
}

// uploadRequest 上传请求体，载荷包在 message 字段里
type uploadRequest struct {
	Message string `json:"message"`
}

// uploadResponse 上传响应，blobId 位于 newlyCreated.blobObject.blobId
type uploadResponse struct {
	NewlyCreated struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
}

// downloadResponse 下载响应，原始载荷在 message 字段里
type downloadResponse struct {
	Message string `json:"message"`
}

// Put 上传载荷并返回存储分配的 blobId。
func (c *Client) Put(ctx context.Context, payload []byte) (string, error) {
	body, err := json.Marshal(uploadRequest{Message: string(payload)})
	if err != nil {
		return "", fmt.Errorf("%w: encode payload: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.publisherURL+"/v1/blobs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("walrus upload rejected", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: upload status %d", ErrUnavailable, resp.StatusCode)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	blobID := out.NewlyCreated.BlobObject.BlobID
	if blobID == "" {
		return "", fmt.Errorf("%w: response missing blobId", ErrUnavailable)
	}

	c.log.Debug("walrus blob uploaded",
		zap.String("blob_id", blobID),
		zap.Int("payload_bytes", len(payload)),
	)
	return blobID, nil
}

// Get 按 blobId 下载原始载荷。
func (c *Client) Get(ctx context.Context, blobID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.aggregatorURL+"/v1/blobs/"+blobID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrBlobNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("walrus download rejected",
			zap.String("blob_id", blobID),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: download status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var out downloadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return []byte(out.Message), nil
}
