package interfaces

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeductionsInProgressRepoInterface marks members currently handled by a sweep replica
type DeductionsInProgressRepoInterface interface {
	CheckEntryExists(ctx context.Context, memberID primitive.ObjectID) (bool, error)
	CreateEntry(ctx context.Context, memberID primitive.ObjectID) error
	DeleteEntry(ctx context.Context, memberID primitive.ObjectID) error
}
