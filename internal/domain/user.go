package domain

import "time"

// User 表示以钱包地址为身份锚点的用户实体。
//
// MailNs 是用户的 suimail 命名空间（形如 "ab3f9@suimail"），全局唯一；
// 登录时若用户不存在会自动生成，之后只允许绑定一次。
type User struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address          string     `json:"address" gorm:"type:varchar(128);uniqueIndex;not null"` // 钱包地址，不可变
	MailNs           *string    `json:"mailNs,omitempty" gorm:"type:varchar(100);uniqueIndex"`
	MailFee          float64    `json:"mailFee" gorm:"default:0"` // 收件费用（SUI），非负
	AvatarURL        string     `json:"avatarUrl,omitempty" gorm:"type:varchar(500)"`
	Whitelist        StringList `json:"whitelist" gorm:"type:text;serializer:json"`
	Blacklist        StringList `json:"blacklist" gorm:"type:text;serializer:json"`
	AuthTokenVersion int64      `json:"-" gorm:"not null;default:0"` // 会话围栏版本号，只增不减
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// StringList 是序列化为 JSON 存储的字符串列表。
type StringList []string

// Contains 判断列表中是否包含指定项。
func (l StringList) Contains(item string) bool {
	for _, v := range l {
		if v == item {
			return true
		}
	}
	return false
}

// Without 返回去除指定项后的新列表。
func (l StringList) Without(item string) StringList {
	out := make(StringList, 0, len(l))
	for _, v := range l {
		if v != item {
			out = append(out, v)
		}
	}
	return out
}

// Ns 返回用户的命名空间，未绑定时为空串。
func (u *User) Ns() string {
	if u.MailNs == nil {
		return ""
	}
	return *u.MailNs
}

// OnWhitelist 判断命名空间是否在该用户的白名单中。
func (u *User) OnWhitelist(ns string) bool {
	return u.Whitelist.Contains(ns)
}

// OnBlacklist 判断命名空间是否在该用户的黑名单中。
func (u *User) OnBlacklist(ns string) bool {
	return u.Blacklist.Contains(ns)
}
