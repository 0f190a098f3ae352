// Package mailcrypt 提供邮件正文的对称加解密编解码器。
//
// 外部 blob 存储按内容寻址，相同明文会得到相同的存储键；Seal 在密文后
// 追加一个非机密的唯一性后缀（当前毫秒时间戳），保证相同正文也落到
// 不同的存储键上。后缀在解密前被丢弃，不携带任何敏感信息。
package mailcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrDecode 表示信封不是本密钥下的有效密文
	ErrDecode = errors.New("mailcrypt: cannot decode envelope")
	// ErrEmptySecret 表示未配置加密密钥
	ErrEmptySecret = errors.New("mailcrypt: secret must not be empty")
)

// Delimiter 分隔密文与唯一性后缀。
// 密文部分是标准 base64，字母表中不含 '!'，所以分隔符不会出现在密文里。
const Delimiter = "!!!"

// 密钥派生参数
const (
	keyLen     = 32
	pbkdf2Iter = 4096
)

// 固定派生盐：密钥本身由配置注入，盐只用于域分离
var kdfSalt = []byte("suimail/mailcrypt/v1")

// Codec 使用共享密钥对邮件正文做 AES-256-GCM 加解密。
type Codec struct {
	aead cipher.AEAD
}

// NewCodec 从配置注入的密钥串派生加密密钥并创建编解码器。
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := pbkdf2.Key([]byte(secret), kdfSalt, pbkdf2Iter, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("mailcrypt: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("mailcrypt: init gcm: %w", err)
	}

	return &Codec{aead: gcm}, nil
}

// Seal 加密明文并返回信封：base64(nonce||密文) + "!!!" + 毫秒时间戳。
func (c *Codec) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("mailcrypt: nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	encoded := base64.StdEncoding.EncodeToString(sealed)

	return encoded + Delimiter + strconv.FormatInt(time.Now().UnixMilli(), 10), nil
}

// Open 解开信封：先按分隔符截断并丢弃唯一性后缀，再解码解密。
func (c *Codec) Open(envelope string) ([]byte, error) {
	encoded, _, _ := strings.Cut(envelope, Delimiter)

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrDecode
	}
	if len(sealed) < c.aead.NonceSize() {
		return nil, ErrDecode
	}

	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecode
	}
	return plaintext, nil
}
