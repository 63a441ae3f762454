package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"installment-ledger/internal/pkg/models"
	"installment-ledger/internal/pkg/store/impl/memory"
	storemodels "installment-ledger/internal/pkg/store/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubPublisher struct {
	failFor map[primitive.ObjectID]bool
	calls   []int
}

func (p *stubPublisher) PublishLedgerEvent(_ context.Context, entry storemodels.CollectionHistory, seq, _ int) error {
	p.calls = append(p.calls, seq)
	if p.failFor[entry.ID] {
		return errors.New("broker down")
	}
	return nil
}

type stubNotifier struct {
	topic string
	data  [][]byte
	err   error
}

func (n *stubNotifier) Publish(_ context.Context, topic string, msg []byte) error {
	n.topic = topic
	n.data = append(n.data, msg)
	return n.err
}

func (n *stubNotifier) Close() error { return nil }

func TestPublishLedgerEvents_FlagsOnlyDelivered(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	entries := []storemodels.CollectionHistory{
		{MemberID: primitive.NewObjectID(), LoanGroupID: "A", Amount: decimal.NewFromInt(100)},
		{MemberID: primitive.NewObjectID(), LoanGroupID: "A", Amount: decimal.NewFromInt(50)},
	}
	_, err := store.CollectionHistory().CreateEntries(ctx, entries)
	require.NoError(t, err)

	publisher := &stubPublisher{failFor: map[primitive.ObjectID]bool{entries[1].ID: true}}
	d := NewDispatcher(publisher, store.CollectionHistory(), nil, "")
	d.PublishLedgerEvents(ctx, []LedgerEvent{
		{Entry: entries[0], SequenceNumber: 1, TotalInSeries: 2},
		{Entry: entries[1], SequenceNumber: 2, TotalInSeries: 2},
	})

	assert.Equal(t, []int{1, 2}, publisher.calls)
	history := store.History()
	assert.True(t, history[0].PublishedToKafka)
	assert.False(t, history[1].PublishedToKafka)
}

func TestNotify(t *testing.T) {
	notifier := &stubNotifier{}
	d := NewDispatcher(nil, nil, notifier, "ledger-notifications")
	d.Notify(context.Background(), models.NotificationMessage{Event: "COLLECTION_RECEIVED", MemberID: "m1"})

	require.Len(t, notifier.data, 1)
	assert.Equal(t, "ledger-notifications", notifier.topic)
	var got models.NotificationMessage
	require.NoError(t, json.Unmarshal(notifier.data[0], &got))
	assert.Equal(t, "m1", got.MemberID)

	// failures are swallowed
	notifier.err = errors.New("unavailable")
	d.Notify(context.Background(), models.NotificationMessage{Event: "X"})
	assert.Len(t, notifier.data, 2)
}

func TestDispatcher_NilSafe(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.PublishLedgerEvents(context.Background(), []LedgerEvent{{}})
		d.Notify(context.Background(), models.NotificationMessage{})
	})
	assert.NotPanics(t, func() {
		NewDispatcher(nil, nil, &stubNotifier{}, "").Notify(context.Background(), models.NotificationMessage{})
	})
}
