package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrInvalidMailNs  = errors.New("invalid suimail namespace")
	ErrMailNsTooLong  = errors.New("suimail namespace too long (max 64 chars)")
	ErrInvalidFee     = errors.New("fee must be a non-negative number")
	ErrEmptySubject   = errors.New("subject must not be empty")
	ErrEmptyBody      = errors.New("body must not be empty")
)

// 验证常量
const (
	// NsSuffix 是命名空间的固定后缀
	NsSuffix = "@suimail"

	// MaxMailNsLength 命名空间最大总长度
	MaxMailNsLength = 64

	// MaxSubjectLength 主题最大长度
	MaxSubjectLength = 500
)

// 命名空间本地部分：小写字母与数字，1-32 位
var nsLocalRegex = regexp.MustCompile(`^[a-z0-9]{1,32}$`)

// Sui 钱包地址：0x 前缀的 64 位十六进制
var addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// ValidateAddress 验证钱包地址格式。
func ValidateAddress(address string) error {
	if !addressRegex.MatchString(strings.TrimSpace(address)) {
		return ErrInvalidAddress
	}
	return nil
}

// ValidateMailNs 验证 suimail 命名空间格式（形如 "ab3f9@suimail"）。
func ValidateMailNs(ns string) error {
	if len(ns) > MaxMailNsLength {
		return ErrMailNsTooLong
	}
	local, ok := strings.CutSuffix(ns, NsSuffix)
	if !ok {
		return ErrInvalidMailNs
	}
	if !nsLocalRegex.MatchString(local) {
		return ErrInvalidMailNs
	}
	return nil
}

// ValidateMailFee 验证收件费用。
func ValidateMailFee(fee float64) error {
	// NaN 与自身不等
	if fee != fee || fee < 0 {
		return ErrInvalidFee
	}
	return nil
}
