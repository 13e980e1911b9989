package verify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimRegistry records which transaction signatures have already settled a
// purchase. Claim returns true exactly once per signature, so one on-chain
// payment can never confirm two sessions.
type ClaimRegistry interface {
	Claim(ctx context.Context, signature string) (bool, error)
}

// MemoryClaims is the in-process registry used when Redis is not configured
// and in tests. Claims live for the lifetime of the process.
type MemoryClaims struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryClaims() *MemoryClaims {
	return &MemoryClaims{seen: make(map[string]struct{})}
}

func (m *MemoryClaims) Claim(_ context.Context, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[signature]; ok {
		return false, nil
	}
	m.seen[signature] = struct{}{}
	return true, nil
}

// RedisClaims keeps the registry in Redis so claims survive restarts and
// are shared between instances. SET NX makes the claim atomic.
type RedisClaims struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisClaims(rdb *redis.Client, ttl time.Duration) *RedisClaims {
	return &RedisClaims{rdb: rdb, ttl: ttl}
}

func (r *RedisClaims) Claim(ctx context.Context, signature string) (bool, error) {
	return r.rdb.SetNX(ctx, "claimed_sig:"+signature, 1, r.ttl).Result()
}
