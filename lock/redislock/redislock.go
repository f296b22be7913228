// Package redislock implements lock.Locker on Redis so several settle
// processes sharing a store still serialise work per order.
package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client is the subset of *redis.Client the locker needs.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// release deletes the key only while it still holds our token.
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker is a Redis-backed lock.Locker using SET NX PX with a random token.
type Locker struct {
	client Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
	logger *slog.Logger
}

// Option configures a Locker.
type Option func(*Locker)

// WithPrefix sets the key prefix. Default "settle:lock:".
func WithPrefix(p string) Option { return func(l *Locker) { l.prefix = p } }

// WithTTL bounds how long a crashed holder can keep a key. Default 2m.
func WithTTL(d time.Duration) Option { return func(l *Locker) { l.ttl = d } }

// WithPollInterval sets the wait between acquisition attempts. Default 25ms.
func WithPollInterval(d time.Duration) Option { return func(l *Locker) { l.poll = d } }

// WithLogger sets the logger used for release failures.
func WithLogger(logger *slog.Logger) Option { return func(l *Locker) { l.logger = logger } }

// New returns a Locker on client.
func New(client Client, opts ...Option) *Locker {
	l := &Locker{
		client: client,
		prefix: "settle:lock:",
		ttl:    2 * time.Minute,
		poll:   25 * time.Millisecond,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewFromAddr dials a plain Redis client at addr.
func NewFromAddr(addr string, opts ...Option) *Locker {
	return New(redis.NewClient(&redis.Options{Addr: addr}), opts...)
}

// Lock implements lock.Locker.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("settle/redislock: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		// The caller's ctx may already be done; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release.Run(rctx, l.client, []string{k}, token).Err(); err != nil && err != redis.Nil {
			l.logger.Warn("redislock: release failed", "key", key, "error", err)
		}
	}, nil
}
