package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Store: the TTL bounds how long an unclaimed entry
// may sit, and GETDEL makes the claim atomic across processes.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

var _ Store = (*Redis)(nil)

func key(k string) string { return "pending_call:" + k }

func (r *Redis) Put(ctx context.Context, k string, p Params) error {
	if k == "" {
		return fmt.Errorf("pending: key required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, key(k), data, r.ttl).Err()
}

func (r *Redis) Claim(ctx context.Context, k string) (Params, bool, error) {
	if k == "" {
		return Params{}, false, fmt.Errorf("pending: key required")
	}
	data, err := r.rdb.GetDel(ctx, key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Params{}, false, nil
	}
	if err != nil {
		return Params{}, false, err
	}
	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return Params{}, false, fmt.Errorf("pending: corrupt entry for %q: %w", k, err)
	}
	return p, true, nil
}
