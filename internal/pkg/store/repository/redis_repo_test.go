package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"installment-ledger/internal/pkg/store/models"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStoreAdapter_SetGetDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	adapter := NewRedisStoreAdapter(db)
	ctx := context.Background()

	mock.ExpectSet("k", "v", time.Minute).SetVal("OK")
	mock.ExpectGet("k").SetVal("v")
	mock.ExpectDel("k").SetVal(1)

	require.NoError(t, adapter.Set(ctx, "k", "v", time.Minute))
	val, err := adapter.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
	require.NoError(t, adapter.Delete(ctx, "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreAdapter_GetCalendar(t *testing.T) {
	ctx := context.Background()
	key := models.CollectorCalendarKeyBuilder("c1")

	t.Run("hit", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		adapter := NewRedisStoreAdapter(db)

		visit := time.Date(2026, 11, 18, 0, 0, 0, 0, time.UTC)
		data, _ := json.Marshal(models.CachedCollectorCalendar{AssignedDay: "Sunday", VisitDates: []time.Time{visit}})
		mock.ExpectGet(key).SetVal(string(data))

		cal, err := adapter.GetCalendar(ctx, "c1")
		require.NoError(t, err)
		require.NotNil(t, cal)
		assert.Equal(t, "Sunday", cal.AssignedDay)
		assert.True(t, cal.VisitDates[0].Equal(visit))
	})

	t.Run("miss", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		adapter := NewRedisStoreAdapter(db)
		mock.ExpectGet(key).RedisNil()

		cal, err := adapter.GetCalendar(ctx, "c1")
		assert.NoError(t, err)
		assert.Nil(t, cal)
	})

	t.Run("redis error", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		adapter := NewRedisStoreAdapter(db)
		mock.ExpectGet(key).SetErr(errors.New("connection reset"))

		_, err := adapter.GetCalendar(ctx, "c1")
		assert.Error(t, err)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		adapter := NewRedisStoreAdapter(db)
		mock.ExpectGet(key).SetVal("{not json")

		_, err := adapter.GetCalendar(ctx, "c1")
		assert.ErrorContains(t, err, "unmarshal collector calendar")
	})
}

func TestRedisStoreAdapter_SaveCalendar(t *testing.T) {
	db, mock := redismock.NewClientMock()
	adapter := NewRedisStoreAdapter(db)

	calendar := models.CachedCollectorCalendar{AssignedDay: "Monday"}
	data, _ := json.Marshal(calendar)
	mock.ExpectSet(models.CollectorCalendarKeyBuilder("c2"), data, time.Hour).SetVal("OK")

	require.NoError(t, adapter.SaveCalendar(context.Background(), "c2", calendar, time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())

	db2, mock2 := redismock.NewClientMock()
	mock2.ExpectSet(models.CollectorCalendarKeyBuilder("c2"), data, time.Hour).SetErr(redis.ErrClosed)
	assert.Error(t, NewRedisStoreAdapter(db2).SaveCalendar(context.Background(), "c2", calendar, time.Hour))
}
