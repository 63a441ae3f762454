package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/models"
	storemodels "installment-ledger/internal/pkg/store/models"
	"installment-ledger/internal/service/interfaces"
)

// LedgerEvent is a committed history entry together with its installment's series position.
type LedgerEvent struct {
	Entry          storemodels.CollectionHistory
	SequenceNumber int
	TotalInSeries  int
}

// Dispatcher fans committed ledger changes out to Kafka and Pub/Sub. Failures are logged only;
// unpublished entries keep publishedToKafka=false and are picked up by the retry relay.
type Dispatcher struct {
	publisher         interfaces.LedgerEventPublisherInterface
	history           interfaces.CollectionHistoryRepoInterface
	notifier          interfaces.RuntimePubSubPublisher
	notificationTopic string
}

func NewDispatcher(
	publisher interfaces.LedgerEventPublisherInterface,
	history interfaces.CollectionHistoryRepoInterface,
	notifier interfaces.RuntimePubSubPublisher,
	notificationTopic string,
) *Dispatcher {
	return &Dispatcher{
		publisher:         publisher,
		history:           history,
		notifier:          notifier,
		notificationTopic: notificationTopic,
	}
}

func (d *Dispatcher) PublishLedgerEvents(ctx context.Context, events []LedgerEvent) {
	if d == nil || d.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := d.publisher.PublishLedgerEvent(ctx, ev.Entry, ev.SequenceNumber, ev.TotalInSeries); err != nil {
			logger.CtxError(ctx, log_messages.PostCommitPublishFailed, err,
				slog.String("historyId", ev.Entry.ID.Hex()),
				slog.String("loanGroupId", ev.Entry.LoanGroupID))
			continue
		}
		if err := d.history.UpdatePublishToKafka(ctx, ev.Entry.ID); err != nil {
			logger.CtxError(ctx, log_messages.FailedToUpdateKafkaFlag, err, slog.String("historyId", ev.Entry.ID.Hex()))
		}
	}
}

func (d *Dispatcher) Notify(ctx context.Context, msg models.NotificationMessage) {
	if d == nil || d.notifier == nil || d.notificationTopic == "" {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.CtxError(ctx, log_messages.ErrorMarshallingJSON, err)
		return
	}
	if err := d.notifier.Publish(ctx, d.notificationTopic, data); err != nil {
		logger.CtxError(ctx, log_messages.PostCommitPublishFailed, err,
			slog.String("topic", d.notificationTopic),
			slog.String("event", msg.Event),
			slog.String("memberId", msg.MemberID))
	}
}
