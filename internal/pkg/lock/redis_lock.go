package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/service/interfaces"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRetryInterval = 25 * time.Millisecond

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-instance SET NX PX lock. Each holder writes a random token
// so an expired holder can never release a lock somebody else took over.
type RedisLocker struct {
	client        redis.UniversalClient
	ttl           time.Duration
	wait          time.Duration
	retryInterval time.Duration
	newToken      func() string
}

var _ interfaces.LockerInterface = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		wait:          wait,
		retryInterval: defaultRetryInterval,
		newToken:      uuid.NewString,
	}
}

// Acquire blocks up to the configured wait. A lock still held after that yields LedgerBusyError.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(ctx context.Context) error, error) {
	token := l.newToken()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			logger.CtxError(ctx, consts.RedisSetFailure, err, slog.String("key", key))
			return nil, &error_handling.LedgerBusyError{Key: key, Err: err}
		}
		if ok {
			logger.CtxDebug(ctx, consts.RedisLockAcquired, slog.String("key", key))
			return l.releaser(key, token), nil
		}

		if !time.Now().Before(deadline) {
			logger.CtxWarn(ctx, consts.RedisLockBusy, slog.String("key", key))
			return nil, &error_handling.LedgerBusyError{Key: key}
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &error_handling.LedgerBusyError{Key: key, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) releaser(key, token string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			logger.CtxError(ctx, consts.RedisDeleteFailure, err, slog.String("key", key))
			return err
		}
		if n == 0 {
			logger.CtxWarn(ctx, "Lock expired before release", slog.String("key", key))
			return nil
		}
		logger.CtxDebug(ctx, consts.RedisLockReleased, slog.String("key", key))
		return nil
	}
}
