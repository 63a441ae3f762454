package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// runTransaction is an injectable hook that runs a transaction. Tests can replace it.
var runTransaction = func(
	ctx context.Context,
	client *mongo.Client,
	cb func(ctx context.Context) error,
) error {
	session, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start MongoDB session: %w", err)
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, cb(sc)
	})
	return err
}

// RunInTransaction executes cb inside a multi-document transaction. Repository calls made
// with the context passed to cb join the session.
func (mc *MongoClient) RunInTransaction(ctx context.Context, cb func(ctx context.Context) error) error {
	return runTransaction(ctx, mc.Client, cb)
}
