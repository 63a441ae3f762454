package deductions_in_progress

import (
	"context"
	"errors"
	"testing"
	"time"

	mongodb "installment-ledger/internal/pkg/db/mongo"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/store/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestCheckEntryExists_Found(t *testing.T) {
	ctx := context.Background()
	memberID := primitive.NewObjectID()

	repo := &DeductionsInProgressRepository{
		findOne: func(ctx context.Context, filter interface{},
			opts *options.FindOneOptions) (models.DeductionsInProgress, error) {
			return models.DeductionsInProgress{MemberID: memberID, CreatedAt: time.Now()}, nil
		},
	}

	ok, err := repo.CheckEntryExists(ctx, memberID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected found == true")
	}
}

func TestCheckEntryExists_NotFound(t *testing.T) {
	repo := &DeductionsInProgressRepository{
		findOne: func(ctx context.Context, filter interface{},
			opts *options.FindOneOptions) (models.DeductionsInProgress, error) {
			return models.DeductionsInProgress{}, mongo.ErrNoDocuments
		},
	}

	ok, err := repo.CheckEntryExists(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("unexpected error for not found: %v", err)
	}
	if ok {
		t.Fatalf("expected found == false when not found")
	}
}

func TestCheckEntryExists_Error(t *testing.T) {
	expectedErr := errors.New("db failure")
	repo := &DeductionsInProgressRepository{
		findOne: func(ctx context.Context, filter interface{},
			opts *options.FindOneOptions) (models.DeductionsInProgress, error) {
			return models.DeductionsInProgress{}, expectedErr
		},
	}

	ok, err := repo.CheckEntryExists(context.Background(), primitive.NewObjectID())
	if !errors.Is(err, expectedErr) {
		t.Fatalf("expected error to be %v, got %v", expectedErr, err)
	}
	if ok {
		t.Fatalf("expected found == false when error occurs")
	}
}

func TestCreateEntry(t *testing.T) {
	memberID := primitive.NewObjectID()

	t.Run("success", func(t *testing.T) {
		repo := &DeductionsInProgressRepository{
			create: func(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error) {
				entry := document.(models.DeductionsInProgress)
				assert.Equal(t, memberID, entry.MemberID)
				return &mongo.InsertOneResult{}, nil
			},
		}
		assert.NoError(t, repo.CreateEntry(context.Background(), memberID))
	})

	t.Run("already claimed", func(t *testing.T) {
		repo := &DeductionsInProgressRepository{
			create: func(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error) {
				return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000"}}}
			},
		}
		err := repo.CreateEntry(context.Background(), memberID)
		assert.True(t, error_handling.IsBusy(err))
	})

	t.Run("other error", func(t *testing.T) {
		repo := &DeductionsInProgressRepository{
			create: func(ctx context.Context, document interface{}) (*mongo.InsertOneResult, error) {
				return nil, errors.New("create failed")
			},
		}
		err := repo.CreateEntry(context.Background(), memberID)
		assert.Error(t, err)
		assert.False(t, error_handling.IsBusy(err))
	})
}

func TestDeleteEntry(t *testing.T) {
	repo := &DeductionsInProgressRepository{
		delete: func(ctx context.Context, filter interface{}) error { return nil },
	}
	assert.NoError(t, repo.DeleteEntry(context.Background(), primitive.NewObjectID()))

	repo.delete = func(ctx context.Context, filter interface{}) error { return errors.New("delete failed") }
	assert.Error(t, repo.DeleteEntry(context.Background(), primitive.NewObjectID()))
}

func TestNewDeductionsInProgressRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("constructor works", func(mt *mtest.T) {
		client := &mongodb.MongoClient{Database: mt.DB}
		repo := NewDeductionsInProgressRepository(client)

		assert.NotNil(t, repo)
		assert.NotNil(t, repo.repo)
	})
}

func TestCreateEntry_DuplicateKeyFromServer(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("second claim is busy", func(mt *mtest.T) {
		repo := NewDeductionsInProgressRepository(&mongodb.MongoClient{Database: mt.DB})
		memberID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
		)

		assert.NoError(mt, repo.CreateEntry(context.Background(), memberID))
		err := repo.CreateEntry(context.Background(), memberID)
		assert.True(mt, error_handling.IsBusy(err))
	})
}
