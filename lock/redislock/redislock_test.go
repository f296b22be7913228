package redislock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Requires a reachable Redis at SETTLE_TEST_REDIS_ADDR.
func newTestLocker(t *testing.T) *Locker {
	t.Helper()
	addr := os.Getenv("SETTLE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SETTLE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, WithPrefix("settle:test:"+t.Name()+":"), WithTTL(5*time.Second))
}

func TestLockExcludes(t *testing.T) {
	l := newTestLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "ord_1")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	wctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(wctx, "ord_1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Lock: got %v, want DeadlineExceeded", err)
	}

	other, err := l.Lock(ctx, "ord_2")
	if err != nil {
		t.Fatalf("independent key: %v", err)
	}
	other()

	unlock()
	again, err := l.Lock(ctx, "ord_1")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	again()
}
