package schedule

import (
	"context"
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CalendarLoader reads collector calendars through the Redis cache, falling back to Mongo.
type CalendarLoader struct {
	collectors interfaces.CollectorsRepositoryInterface
	cache      interfaces.CollectorCalendarCacheInterface
	ttl        time.Duration
}

func NewCalendarLoader(
	collectors interfaces.CollectorsRepositoryInterface,
	cache interfaces.CollectorCalendarCacheInterface,
	ttl time.Duration,
) *CalendarLoader {
	return &CalendarLoader{collectors: collectors, cache: cache, ttl: ttl}
}

// Load returns nil without error when the collector has no usable calendar.
// Cache failures are logged and never block schedule generation.
func (l *CalendarLoader) Load(ctx context.Context, collectorID primitive.ObjectID) (*CollectorCalendar, error) {
	key := collectorID.Hex()
	if l.cache != nil {
		cached, err := l.cache.GetCalendar(ctx, key)
		if err != nil {
			logger.CtxWarn(ctx, consts.RedisGetFailure, slog.String("collectorId", key), slog.String("error", err.Error()))
		} else if cached != nil {
			return CalendarFromCollector(&models.Collector{AssignedDay: cached.AssignedDay, VisitDates: cached.VisitDates}), nil
		}
	}

	collector, err := l.collectors.GetByID(ctx, collectorID)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		entry := models.CachedCollectorCalendar{AssignedDay: collector.AssignedDay, VisitDates: collector.VisitDates}
		if err := l.cache.SaveCalendar(ctx, key, entry, l.ttl); err != nil {
			logger.CtxWarn(ctx, consts.RedisSetFailure, slog.String("collectorId", key), slog.String("error", err.Error()))
		}
	}
	return CalendarFromCollector(collector), nil
}
