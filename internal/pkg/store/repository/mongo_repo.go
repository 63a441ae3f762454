package repository

import (
	"context"

	"installment-ledger/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository[T any] struct {
	collection interfaces.MongoRepositoryInterface
}

func NewMongoRepository[T any](collection interfaces.MongoRepositoryInterface) *MongoRepository[T] {
	return &MongoRepository[T]{collection: collection}
}

func (r *MongoRepository[T]) GetCollection() interfaces.MongoRepositoryInterface {
	return r.collection
}

func (r *MongoRepository[T]) Create(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error) {

	if result, err := r.collection.InsertOne(ctx, document); err != nil {
		return nil, err
	} else {
		return result, nil
	}

}

func (r *MongoRepository[T]) CreateMany(ctx context.Context, documents []interface{}) (*mongo.InsertManyResult, error) {

	if result, err := r.collection.InsertMany(ctx, documents); err != nil {
		return nil, err
	} else {
		return result, nil
	}
}

// Read a document by filter
func (r *MongoRepository[T]) FindOne(ctx context.Context, filter interface{}, opt *options.FindOneOptions) (T, error) {

	var result T

	if err := r.collection.FindOne(ctx, filter, opt).Decode(&result); err != nil {
		return result, err
	}

	return result, nil

}

// FindOneAndUpdate applies a raw update document and returns the updated record.
func (r *MongoRepository[T]) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (T, error) {

	var result T
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return result, err
	}

	return result, nil
}

func (r *MongoRepository[T]) Aggregate(ctx context.Context, pipeline interface{}, result interface{}) error {

	if cursor, err := r.collection.Aggregate(ctx, pipeline); err != nil {
		return err
	} else {
		defer func() {
			_ = cursor.Close(ctx)
		}()

		if cursor.Next(ctx) {
			return cursor.Decode(result)
		}
		return mongo.ErrNoDocuments
	}
}

// Update a document; the update is wrapped in $set
func (r *MongoRepository[T]) UpdateOne(ctx context.Context, filter interface{}, update interface{}) error {

	if _, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": update}); err != nil {
		return err
	}
	return nil

}

// UpdateOneRaw sends the update document as given and returns the match counts.
func (r *MongoRepository[T]) UpdateOneRaw(ctx context.Context, filter interface{},
	update interface{}) (*mongo.UpdateResult, error) {

	if result, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return nil, err
	} else {
		return result, nil
	}
}

// Delete a document
func (r *MongoRepository[T]) Delete(ctx context.Context, filter interface{}) error {

	if _, err := r.collection.DeleteOne(ctx, filter); err != nil {
		return err
	}
	return nil
}

func (r *MongoRepository[T]) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {

	if count, err := r.collection.CountDocuments(ctx, filter); err != nil {
		return 0, err
	} else {
		return count, nil
	}
}

func (r *MongoRepository[T]) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]T, error) {

	if cursor, err := r.collection.Find(ctx, filter, opts...); err != nil {
		return nil, err
	} else {
		defer func() {
			_ = cursor.Close(ctx)
		}()

		var results []T
		for cursor.Next(ctx) {
			var entity T
			if err := cursor.Decode(&entity); err != nil {
				return nil, err
			}
			results = append(results, entity)
		}
		return results, cursor.Err()
	}
}

func (r *MongoRepository[T]) UpdateMany(
	ctx context.Context,
	filter interface{},
	update interface{},
) (*mongo.UpdateResult, error) {

	if result, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return nil, err
	} else {
		return result, nil
	}
}

func (r *MongoRepository[T]) AggregateAll(ctx context.Context, pipeline interface{}, result interface{}) error {

	if cursor, err := r.collection.Aggregate(ctx, pipeline); err != nil {
		return err
	} else {
		defer func() {
			_ = cursor.Close(ctx)
		}()

		return cursor.All(ctx, result)
	}

}
