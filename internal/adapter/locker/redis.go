package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/config"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

const (
	keyPrefix    = "printtrack:order-lock:"
	retryBackoff = 100 * time.Millisecond
	maxRetries   = 20
)

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger logger.Logger
}

// Connect opens the redis client used for order locks and checks it.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedis returns a lock shared by every instance talking to the same redis.
// ttl bounds how long a crashed holder can block an order.
func NewRedis(rdb redis.UniversalClient, ttl time.Duration, lgr logger.Logger) interfaces.OrderLocker {
	return &redisLocker{client: redislock.New(rdb), ttl: ttl, logger: lgr}
}

func (l *redisLocker) Lock(ctx context.Context, orderNumber string) (func(), error) {
	lock, err := l.client.Obtain(ctx, keyPrefix+orderNumber, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryBackoff), maxRetries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, interfaces.ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain order lock: %w", err)
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("lock_release_failed", "Failed to release order lock", "", map[string]interface{}{
				"order_number": orderNumber,
				"error":        err.Error(),
			})
		}
	}, nil
}
