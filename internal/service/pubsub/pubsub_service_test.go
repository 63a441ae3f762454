package pubsub_service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/models"
	"installment-ledger/internal/pkg/pubsub"
	"installment-ledger/internal/service/collection"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockCollector struct {
	mock.Mock
}

func (m *mockCollector) Collect(ctx context.Context, req *collection.CollectionRequest) (*models.CollectionResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.CollectionResult)
	return res, args.Error(1)
}

func validMessage(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(models.CollectionRequestMessage{
		MemberID:      primitive.NewObjectID().Hex(),
		CollectorID:   primitive.NewObjectID().Hex(),
		InstallmentID: primitive.NewObjectID().Hex(),
		Amount:        decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	return data
}

func TestAction(t *testing.T) {
	assert.Equal(t, consts.ActionAck, Action(nil))
	assert.Equal(t, consts.ActionAck, Action(&error_handling.DuplicateCollectionError{}))
	assert.Equal(t, consts.ActionAck, Action(error_handling.NewValidationError("amount", "bad")))
	assert.Equal(t, consts.ActionAck, Action(error_handling.NewNotFoundError("installment", "id", "x")))
	assert.Equal(t, consts.ActionIgnore, Action(&error_handling.LedgerBusyError{Key: "k"}))
	assert.Equal(t, consts.ActionNack, Action(errors.New("mongo down")))
	assert.Equal(t, consts.ActionNack, Action(error_handling.NewInconsistentLedgerStateError("g", "retries", nil)))
}

func TestHandleCollectionMessage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		collectErr error
		assertErr  func(t *testing.T, err error)
	}{
		{"applied", nil, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"duplicate is acked", &error_handling.DuplicateCollectionError{}, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"busy is left for redelivery", &error_handling.LedgerBusyError{Key: "k"}, func(t *testing.T, err error) {
			var ignore *pubsub.MessageIgnoreError
			assert.ErrorAs(t, err, &ignore)
		}},
		{"storage failure is nacked", errors.New("mongo down"), func(t *testing.T, err error) {
			assert.EqualError(t, err, "mongo down")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := &mockCollector{}
			collector.On("Collect", mock.Anything, mock.AnythingOfType("*collection.CollectionRequest")).
				Return(&models.CollectionResult{}, tt.collectErr).Once()

			err := NewCollectionMessageConsumer(collector).HandleCollectionMessage(ctx, validMessage(t))
			tt.assertErr(t, err)
			collector.AssertExpectations(t)
		})
	}
}

func TestHandleCollectionMessage_DropsBadPayloads(t *testing.T) {
	collector := &mockCollector{}
	consumer := NewCollectionMessageConsumer(collector)

	assert.NoError(t, consumer.HandleCollectionMessage(context.Background(), []byte("{not json")))

	data, _ := json.Marshal(models.CollectionRequestMessage{MemberID: "short", Amount: decimal.NewFromInt(5)})
	assert.NoError(t, consumer.HandleCollectionMessage(context.Background(), data))

	collector.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything)
}
