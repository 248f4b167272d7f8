package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voicecampaign/internal/store"
)

// DedupSet remembers which (provider call id, status) webhook deliveries have
// already been applied, so redelivered webhooks cannot double-count campaign
// counters.
type DedupSet interface {
	// MarkDelivered records the delivery; first reports whether this is the
	// first time the pair was seen.
	MarkDelivered(ctx context.Context, providerCallID string, status store.CallStatus) (first bool, err error)
}

// RedisDedup keys deliveries in redis with a TTL; a day is far beyond any
// provider's webhook retry horizon.
type RedisDedup struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDedup(rdb *redis.Client) *RedisDedup {
	return &RedisDedup{rdb: rdb, ttl: 24 * time.Hour}
}

var _ DedupSet = (*RedisDedup)(nil)

func (d *RedisDedup) MarkDelivered(ctx context.Context, providerCallID string, status store.CallStatus) (bool, error) {
	if providerCallID == "" {
		return false, fmt.Errorf("reconcile: provider call id required")
	}
	key := "webhook_dedup:" + providerCallID + ":" + string(status)
	return d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
}

// MemoryDedup is the in-process DedupSet for tests.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{seen: map[string]struct{}{}}
}

var _ DedupSet = (*MemoryDedup)(nil)

func (d *MemoryDedup) MarkDelivered(ctx context.Context, providerCallID string, status store.CallStatus) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := providerCallID + ":" + string(status)
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}
