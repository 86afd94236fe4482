package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes RedisLocker.
type RedisConfig struct {
	Prefix      string
	TTL         time.Duration
	WaitTimeout time.Duration
	RetryDelay  time.Duration
	Logger      *zap.Logger
}

// RedisLocker is a Locker shared between API instances. Ownership is a
// SET NX PX entry holding a random token; release deletes it only while the
// token still matches.
type RedisLocker struct {
	client      *redis.Client
	prefix      string
	ttl         time.Duration
	waitTimeout time.Duration
	retryDelay  time.Duration
	maxDelay    time.Duration
	logger      *zap.Logger
}

// NewRedisLocker builds a RedisLocker with defaults for unset fields.
func NewRedisLocker(client *redis.Client, cfg RedisConfig) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 3 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 25 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RedisLocker{
		client:      client,
		prefix:      cfg.Prefix,
		ttl:         cfg.TTL,
		waitTimeout: cfg.WaitTimeout,
		retryDelay:  cfg.RetryDelay,
		maxDelay:    cfg.RetryDelay * 8,
		logger:      cfg.Logger,
	}
}

// Acquire polls SET NX with exponential backoff until the wait budget is spent.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.waitTimeout)
	delay := l.retryDelay

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}
		if time.Now().Add(delay).After(deadline) {
			return nil, ErrTimeout
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > l.maxDelay {
			delay = l.maxDelay
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("redis lock release failed", zap.String("key", redisKey), zap.Error(err))
			}
		})
	}
}
