package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"

	"github.com/redis/go-redis/v9"
)

type RedisStoreAdapter struct {
	client *redis.Client
}

var _ interfaces.RedisStoreOperations = (*RedisStoreAdapter)(nil)
var _ interfaces.CollectorCalendarCacheInterface = (*RedisStoreAdapter)(nil)

func NewRedisStoreAdapter(client *redis.Client) *RedisStoreAdapter {
	return &RedisStoreAdapter{client: client}
}

func (a *RedisStoreAdapter) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return a.client.Set(ctx, key, value, expiration).Err()
}

func (a *RedisStoreAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	return a.client.Get(ctx, key).Bytes()
}

func (a *RedisStoreAdapter) Delete(ctx context.Context, key string) error {
	return a.client.Del(ctx, key).Err()
}

func (a *RedisStoreAdapter) GetCalendar(ctx context.Context, collectorID string) (*models.CachedCollectorCalendar, error) {
	data, err := a.Get(ctx, models.CollectorCalendarKeyBuilder(collectorID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var calendar models.CachedCollectorCalendar
	if err := json.Unmarshal(data, &calendar); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collector calendar: %w", err)
	}
	return &calendar, nil
}

func (a *RedisStoreAdapter) SaveCalendar(
	ctx context.Context,
	collectorID string,
	calendar models.CachedCollectorCalendar,
	ttl time.Duration,
) error {
	data, err := json.Marshal(calendar)
	if err != nil {
		return fmt.Errorf("failed to marshal collector calendar: %w", err)
	}
	return a.Set(ctx, models.CollectorCalendarKeyBuilder(collectorID), data, ttl)
}
