// Package otp implements the single-use numeric codes used for email
// verification and password reset.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"
)

const (
	// Length 验证码位数。
	Length = 6
	// DefaultTTL 验证码默认有效期。
	DefaultTTL = 10 * time.Minute
)

var (
	ErrInvalid = errors.New("otp invalid")
	ErrExpired = errors.New("otp expired")
)

// Code 是绑定在用户记录上的一次性验证码。
//
// 同一时间只存在一个有效验证码，重新签发会覆盖旧值。
type Code struct {
	Value     string     `gorm:"column:otp;type:varchar(16)"`
	ExpiresAt *time.Time `gorm:"column:otp_expires"`
}

// Issue 生成新的验证码，过期时间为 now+ttl。
func Issue(now time.Time, ttl time.Duration) (Code, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	value, err := generate(Length)
	if err != nil {
		return Code{}, fmt.Errorf("generate code: %w", err)
	}
	exp := now.Add(ttl)
	return Code{Value: value, ExpiresAt: &exp}, nil
}

// Pending reports whether a code is currently stored.
func (c Code) Pending() bool {
	return c.Value != ""
}

// Expired reports whether the stored code can no longer be used at now.
func (c Code) Expired(now time.Time) bool {
	return c.ExpiresAt == nil || !now.Before(*c.ExpiresAt)
}

// Check 校验提交的验证码。失败时不修改已存储的验证码。
func (c Code) Check(supplied string, now time.Time) error {
	if !c.Pending() || supplied == "" {
		return ErrInvalid
	}
	if subtle.ConstantTimeCompare([]byte(c.Value), []byte(supplied)) != 1 {
		return ErrInvalid
	}
	if c.Expired(now) {
		return ErrExpired
	}
	return nil
}

// Consume clears the code so it cannot be replayed.
func (c *Code) Consume() {
	c.Value = ""
	c.ExpiresAt = nil
}

func generate(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid code length")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = '0' + (buf[i] % 10)
	}
	return string(buf), nil
}
