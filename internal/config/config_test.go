package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"SUIMAIL_JWT_SECRET",
		"SUIMAIL_CIPHER_SECRET",
		"SUIMAIL_SERVER_HOST",
		"SUIMAIL_SERVER_PORT",
		"SUIMAIL_WALRUS_PUBLISHER_URL",
		"SUIMAIL_WALRUS_AGGREGATOR_URL",
		"SUIMAIL_WALRUS_TIMEOUT",
		"SUIMAIL_RATELIMIT_ENABLED",
		"SUIMAIL_LOG_LEVEL",
		"SUIMAIL_LOG_DEVELOPMENT",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	clearEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		clearEnv()
		os.Setenv("SUIMAIL_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("SUIMAIL_CIPHER_SECRET", "cipher-secret-16-chars-min")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Equal(t, "suimail", cfg.JWT.Issuer)
		assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
		assert.Equal(t, "https://wal-publisher-testnet.staketab.org", cfg.Walrus.PublisherURL)
		assert.Equal(t, "https://wal-aggregator-testnet.staketab.org", cfg.Walrus.AggregatorURL)
		assert.Equal(t, 30*time.Second, cfg.Walrus.Timeout)
		assert.True(t, cfg.RateLimit.Enabled)
		assert.Equal(t, int64(100), cfg.RateLimit.Requests)
		assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		clearEnv()
		os.Setenv("SUIMAIL_JWT_SECRET", "custom-jwt-secret-key-32-chars-long-minimum")
		os.Setenv("SUIMAIL_CIPHER_SECRET", "custom-cipher-secret")
		os.Setenv("SUIMAIL_SERVER_HOST", "127.0.0.1")
		os.Setenv("SUIMAIL_SERVER_PORT", "9090")
		os.Setenv("SUIMAIL_WALRUS_PUBLISHER_URL", "https://publisher.example.com/")
		os.Setenv("SUIMAIL_WALRUS_TIMEOUT", "10s")
		os.Setenv("SUIMAIL_LOG_LEVEL", "debug")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 10*time.Second, cfg.Walrus.Timeout)

		t.Run("端点尾部斜杠被去除", func(t *testing.T) {
			assert.Equal(t, "https://publisher.example.com", cfg.Walrus.PublisherURL)
		})
	})

	t.Run("缺少JWT密钥时失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("SUIMAIL_CIPHER_SECRET", "cipher-secret-16-chars-min")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("JWT密钥过短时失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("SUIMAIL_JWT_SECRET", "too-short")
		os.Setenv("SUIMAIL_CIPHER_SECRET", "cipher-secret-16-chars-min")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("缺少加密密钥时失败", func(t *testing.T) {
		clearEnv()
		os.Setenv("SUIMAIL_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")

		_, err := Load()
		assert.Error(t, err)
	})
}
