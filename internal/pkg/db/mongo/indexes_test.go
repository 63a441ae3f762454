package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func startedCommands(mt *mtest.T) []string {
	var names []string
	for _, ev := range mt.GetAllStartedEvents() {
		names = append(names, ev.CommandName)
	}
	return names
}

func TestEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("fresh collections", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".DeductionsInProgress"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(mt, EnsureIndexes(context.Background(), mt.DB, 2*time.Hour))
		assert.Equal(mt, []string{"listIndexes", "createIndexes", "createIndexes"}, startedCommands(mt))
	})

	mt.Run("ttl already matches", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".DeductionsInProgress"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "name", Value: "createdAt_ttl"}, {Key: "expireAfterSeconds", Value: int32(7200)}}),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(mt, EnsureIndexes(context.Background(), mt.DB, 2*time.Hour))
		assert.NotContains(mt, startedCommands(mt), "dropIndexes")
	})

	mt.Run("stale ttl is dropped first", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".DeductionsInProgress"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "name", Value: "createdAt_ttl"}, {Key: "expireAfterSeconds", Value: int32(60)}}),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		require.NoError(mt, EnsureIndexes(context.Background(), mt.DB, 2*time.Hour))
		assert.Equal(mt, []string{"listIndexes", "dropIndexes", "createIndexes", "createIndexes"}, startedCommands(mt))
	})

	mt.Run("create failure", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".DeductionsInProgress"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 85, Name: "IndexOptionsConflict", Message: "conflict"}),
		)

		assert.Error(mt, EnsureIndexes(context.Background(), mt.DB, 2*time.Hour))
	})
}

func TestExpirySeconds(t *testing.T) {
	assert.Equal(t, int64(60), expirySeconds(int32(60)))
	assert.Equal(t, int64(60), expirySeconds(int64(60)))
	assert.Equal(t, int64(60), expirySeconds(float64(60)))
	assert.Equal(t, int64(-1), expirySeconds("60"))
}
