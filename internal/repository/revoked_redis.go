package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocations keeps the revocation set as Redis keys that expire
// together with the token they revoke.
type RedisRevocations struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRevocations(rdb *redis.Client, prefix string) *RedisRevocations {
	if prefix == "" {
		prefix = "natours:revoked"
	}
	return &RedisRevocations{rdb: rdb, prefix: prefix}
}

func (r *RedisRevocations) key(digest string) string { return r.prefix + ":" + digest }

// IsRevoked reports whether the digest key exists.
func (r *RedisRevocations) IsRevoked(ctx context.Context, digest string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(digest)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revoke sets the digest key if absent, expiring at exp.
func (r *RedisRevocations) Revoke(ctx context.Context, digest string, exp time.Time) (bool, error) {
	ttl := time.Until(exp)
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.rdb.SetNX(ctx, r.key(digest), exp.Unix(), ttl).Result()
}
