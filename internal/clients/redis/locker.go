package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/powerlens-backend/internal/platform/logger"
)

var ErrLockTimeout = errors.New("redis lock: timed out waiting for lease")

// releaseScript deletes the key only while it still holds our token, so an
// expired lease taken over by another process is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type LockerOptions struct {
	Addr      string
	Prefix    string
	TTL       time.Duration
	RetryWait time.Duration
}

// Locker is a lease-based mutual exclusion primitive shared by every API replica.
type Locker struct {
	log       *logger.Logger
	rdb       goredis.UniversalClient
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
}

func NewLocker(log *logger.Logger, opts LockerOptions) (*Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewLockerWithClient(log, rdb, opts), nil
}

func NewLockerWithClient(log *logger.Logger, rdb goredis.UniversalClient, opts LockerOptions) *Locker {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "powerlens:lock:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	wait := opts.RetryWait
	if wait <= 0 {
		wait = 15 * time.Millisecond
	}
	return &Locker{
		log:       log.With("client", "RedisLocker"),
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		retryWait: wait,
	}
}

// Lock blocks until the lease for key is acquired or ctx ends.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	full := l.prefix + key
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(full, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-time.After(l.retryWait):
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		l.log.Warn("redis lock release failed", "key", key, "error", err)
	}
}

func (l *Locker) Close() error {
	return l.rdb.Close()
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
