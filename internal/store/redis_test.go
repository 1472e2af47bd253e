package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreFromClient(client), mr
}

func TestCheckAndIncrementEnforcesLimit(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, remaining, _, err := s.CheckAndIncrement(ctx, "send:user", 3, time.Minute)
		if err != nil {
			t.Fatalf("CheckAndIncrement: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if remaining != 3-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i, 3-i, remaining)
		}
	}

	allowed, remaining, resetAt, err := s.CheckAndIncrement(ctx, "send:user", 3, time.Minute)
	if err != nil {
		t.Fatalf("CheckAndIncrement: %v", err)
	}
	if allowed || remaining != 0 {
		t.Fatalf("fourth request should be rejected, allowed=%v remaining=%d", allowed, remaining)
	}
	if !resetAt.After(time.Now().Add(-time.Second)) {
		t.Fatalf("reset time %v should be in the future", resetAt)
	}
}

func TestCheckAndIncrementSubjectsAreIndependent(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	if allowed, _, _, _ := s.CheckAndIncrement(ctx, "send:a", 1, time.Minute); !allowed {
		t.Fatalf("first request for a should be allowed")
	}
	if allowed, _, _, _ := s.CheckAndIncrement(ctx, "send:b", 1, time.Minute); !allowed {
		t.Fatalf("subject b must not share a's counter")
	}
}

func TestCheckAndIncrementSetsExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	if _, _, _, err := s.CheckAndIncrement(ctx, "send:ttl", 5, 30*time.Second); err != nil {
		t.Fatalf("CheckAndIncrement: %v", err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one counter key, got %v", keys)
	}
	key := keys[0]
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestRedisStorePing(t *testing.T) {
	s, mr := newTestRedisStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mr.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail after server shutdown")
	}
}
