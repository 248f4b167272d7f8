package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voicecampaign/pkg/utils"
)

// RunGuard serializes campaign runs: at most one driver per campaign id at a
// time. A second Acquire for the same campaign reports false until Release.
type RunGuard interface {
	Acquire(ctx context.Context, campaignID string) (bool, error)
	Release(ctx context.Context, campaignID string) error
}

// RedisGuard backs the guard with a redis concurrency cap of one. The TTL
// keeps a crashed driver from wedging its campaign forever; it must exceed
// the longest plausible campaign run.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: 6 * time.Hour}
}

var _ RunGuard = (*RedisGuard)(nil)

func (g *RedisGuard) Acquire(ctx context.Context, campaignID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, guardKey(campaignID), 1, g.ttl)
}

func (g *RedisGuard) Release(ctx context.Context, campaignID string) error {
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, guardKey(campaignID))
}

func guardKey(campaignID string) string {
	return "campaign_running:" + campaignID
}

// MemoryGuard is the in-process RunGuard for tests and single-node setups.
type MemoryGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{running: map[string]struct{}{}}
}

var _ RunGuard = (*MemoryGuard)(nil)

func (g *MemoryGuard) Acquire(ctx context.Context, campaignID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.running[campaignID]; ok {
		return false, nil
	}
	g.running[campaignID] = struct{}{}
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, campaignID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, campaignID)
	return nil
}
