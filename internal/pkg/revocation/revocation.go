package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "astromissions:revoked:jti:"

// List 记录已注销的令牌 ID，保留到令牌自然过期为止。
type List struct {
	rdb *redis.Client
}

func NewList(rdb *redis.Client) *List {
	return &List{rdb: rdb}
}

// Revoke marks jti as revoked until expiresAt. Already-expired tokens are ignored.
func (l *List) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if l == nil || l.rdb == nil || jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := l.rdb.SetNX(ctx, keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke setnx: %w", err)
	}
	return nil
}

// Revoked reports whether jti has been revoked.
func (l *List) Revoked(ctx context.Context, jti string) (bool, error) {
	if l == nil || l.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := l.rdb.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("revoked exists: %w", err)
	}
	return n > 0, nil
}
