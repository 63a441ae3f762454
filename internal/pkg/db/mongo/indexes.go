package mongo

import (
	"context"
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	markerMemberIndex  = "memberId_unique"
	markerTTLIndex     = "createdAt_ttl"
	receiptUniqueIndex = "memberId_receiptNumber_unique"
)

// EnsureIndexes creates the indexes the ledger depends on. Deduction markers are unique per
// member and expire after markerTTL. Collection receipts are unique per member.
func EnsureIndexes(ctx context.Context, db *mongo.Database, markerTTL time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ttlSeconds := int32(markerTTL / time.Second)
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	markers := db.Collection(consts.DeductionsInProgressCollection)
	if err := dropStaleTTLIndex(ctx, markers, ttlSeconds); err != nil {
		return err
	}
	_, err := markers.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "memberId", Value: 1}},
			Options: options.Index().SetName(markerMemberIndex).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetName(markerTTLIndex).SetExpireAfterSeconds(ttlSeconds),
		},
	})
	if err != nil {
		logger.CtxError(ctx, "Failed to create deduction marker indexes", err)
		return err
	}

	history := db.Collection(consts.CollectionHistoryCollection)
	_, err = history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "memberId", Value: 1}, {Key: "receiptNumber", Value: 1}},
		Options: options.Index().SetName(receiptUniqueIndex).SetUnique(true).
			SetPartialFilterExpression(bson.D{
				{Key: "entryType", Value: "collection"},
				{Key: "receiptNumber", Value: bson.D{{Key: "$gt", Value: ""}}},
			}),
	})
	if err != nil {
		logger.CtxError(ctx, "Failed to create receipt index", err)
		return err
	}

	logger.CtxInfo(ctx, "Ledger indexes ready", slog.Int("markerTTLSeconds", int(ttlSeconds)))
	return nil
}

// dropStaleTTLIndex removes a TTL index whose expiry no longer matches, since an index
// cannot be recreated under the same name with different options.
func dropStaleTTLIndex(ctx context.Context, coll *mongo.Collection, ttlSeconds int32) error {
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		logger.CtxError(ctx, "Failed to list indexes", err, slog.String("collection", coll.Name()))
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			return err
		}
		expiry, ok := index["expireAfterSeconds"]
		if !ok {
			continue
		}
		if expirySeconds(expiry) == int64(ttlSeconds) {
			return nil
		}
		name, _ := index["name"].(string)
		if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
			logger.CtxError(ctx, "Could not drop TTL index", err, slog.String("index", name))
			return err
		}
		logger.CtxInfo(ctx, "TTL index dropped", slog.String("index", name))
		return nil
	}
	return cursor.Err()
}

func expirySeconds(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return -1
}
