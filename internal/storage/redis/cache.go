package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"suimail/backend/internal/domain"
)

// Cache 基于 Redis 的限流计数与用户画像缓存
type Cache struct {
	client *Client
}

// NewCache 创建缓存实例
func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// ========== 限流计数 ==========

// IncrementRateLimit 自增限流计数，首次计数时设置窗口过期
func (c *Cache) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	redisKey := fmt.Sprintf("ratelimit:%s", key)

	pipe := c.client.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// ========== 用户缓存 ==========

// CacheUser 缓存用户信息
func (c *Cache) CacheUser(user *domain.User, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf("user:%s", user.ID)
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(ctx, key, data, ttl).Err()
}

// GetCachedUser 获取缓存的用户信息
func (c *Cache) GetCachedUser(userID string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf("user:%s", userID)
	data, err := c.client.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, fmt.Errorf("user not found in cache")
		}
		return nil, err
	}

	var user domain.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteCachedUser 删除缓存的用户信息
func (c *Cache) DeleteCachedUser(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return c.client.rdb.Del(ctx, fmt.Sprintf("user:%s", userID)).Err()
}
