package model

import (
	"regexp"
	"strings"
	"time"

	"astromissions/internal/pkg/otp"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9]+$`)

// User 表示系统用户。
//
// 关注关系与追踪任务不保存在本表，而是保存在关联表中（见 relations.go）。
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Email      string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	Password   string    `gorm:"not null" json:"-"`                               // bcrypt 哈希
	Role       string    `gorm:"type:varchar(16);default:user" json:"role"`       // user / admin
	IsVerified bool      `gorm:"default:false" json:"isVerified"`                 // 邮箱是否已验证
	Name       string    `gorm:"type:varchar(128)" json:"name,omitempty"`         // 显示名称
	Bio        string    `gorm:"type:text" json:"bio,omitempty"`                  // 个人简介
	OTP        otp.Code  `gorm:"embedded" json:"-"`                               // 当前有效的验证码
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user may moderate content.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidUsername reports whether name only contains lowercase letters and digits.
func ValidUsername(name string) bool {
	return usernameRe.MatchString(name)
}

// UserRef 是作者等场景下返回的用户摘要。
type UserRef struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

func (UserRef) TableName() string { return "users" }

// Profile is the user as returned by /me and public profile lookups.
type Profile struct {
	User
	Followers       []UserRef `json:"followers"`
	Following       []UserRef `json:"following"`
	TrackedMissions []Mission `json:"trackedMissions"`
}
