package pending

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemory_ClaimOnce(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx := context.Background()

	if err := m.Put(ctx, "camp1", Params{FirstName: "Amy", LeadID: "lead1"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	p, ok, err := m.Claim(ctx, "camp1")
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if p.FirstName != "Amy" || p.LeadID != "lead1" {
		t.Fatalf("unexpected params: %+v", p)
	}

	if _, ok, _ := m.Claim(ctx, "camp1"); ok {
		t.Fatalf("second claim must find nothing")
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Unix(1700000000, 0)
	m.clock = func() time.Time { return now }

	ctx := context.Background()
	if err := m.Put(ctx, "camp1", Params{FirstName: "Amy"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Claim(ctx, "camp1"); ok {
		t.Fatalf("expired entry must not be claimable")
	}
}

func TestRedis_ClaimOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := NewRedis(rdb, time.Minute)
	ctx := context.Background()

	if err := r.Put(ctx, "camp1", Params{IsTestCall: true, FirstName: "Amy"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	p, ok, err := r.Claim(ctx, "camp1")
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	if !p.IsTestCall || p.FirstName != "Amy" {
		t.Fatalf("unexpected params: %+v", p)
	}

	if _, ok, _ := r.Claim(ctx, "camp1"); ok {
		t.Fatalf("second claim must find nothing")
	}
}

func TestRedis_TTLSet(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := NewRedis(rdb, time.Minute)
	if err := r.Put(context.Background(), "camp1", Params{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := mr.TTL("pending_call:camp1"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := r.Claim(context.Background(), "camp1"); ok {
		t.Fatalf("expired entry must not be claimable")
	}
}
