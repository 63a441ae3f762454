package interfaces

import (
	"context"
	"time"

	"installment-ledger/internal/pkg/store/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CollectorsRepositoryInterface interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Collector, error)
}

// CollectorCalendarCacheInterface returns nil, nil on a cache miss.
type CollectorCalendarCacheInterface interface {
	GetCalendar(ctx context.Context, collectorID string) (*models.CachedCollectorCalendar, error)
	SaveCalendar(ctx context.Context, collectorID string, calendar models.CachedCollectorCalendar,
		ttl time.Duration) error
}
