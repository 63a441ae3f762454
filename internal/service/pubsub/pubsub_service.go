package pubsub_service

import (
	"context"
	"encoding/json"
	"log/slog"

	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/pkg/models"
	"installment-ledger/internal/pkg/pubsub"
	"installment-ledger/internal/service/collection"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate = validator.New()

// Collector is the part of the collection service the consumer drives.
type Collector interface {
	Collect(ctx context.Context, req *collection.CollectionRequest) (*models.CollectionResult, error)
}

type CollectionMessageConsumer struct {
	collector Collector
}

func NewCollectionMessageConsumer(collector Collector) *CollectionMessageConsumer {
	return &CollectionMessageConsumer{collector: collector}
}

// Action maps a processing outcome to what the subscription should do with the message.
// Replays and permanently bad requests are acknowledged so they are not redelivered forever.
func Action(err error) string {
	switch {
	case err == nil,
		error_handling.IsDuplicate(err),
		error_handling.IsValidation(err),
		error_handling.IsNotFound(err):
		return consts.ActionAck
	case error_handling.IsBusy(err):
		return consts.ActionIgnore
	default:
		return consts.ActionNack
	}
}

// HandleCollectionMessage is the Pub/Sub handler. A nil return ACKs, MessageIgnoreError leaves
// the message for redelivery, any other error NACKs.
func (c *CollectionMessageConsumer) HandleCollectionMessage(ctx context.Context, data []byte) error {
	var msg models.CollectionRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.CtxError(ctx, log_messages.ErrorUnmarshalingPubsubMessage, err)
		return nil
	}
	if err := validate.Struct(msg); err != nil {
		logger.CtxWarn(ctx, log_messages.InvalidCollectionMessageDropped,
			slog.String("message", msg.String()), slog.String("error", err.Error()))
		return nil
	}

	req, err := collection.RequestFromMessage(&msg)
	if err == nil {
		_, err = c.collector.Collect(ctx, req)
	}

	switch Action(err) {
	case consts.ActionAck:
		if err != nil {
			logger.CtxInfo(ctx, log_messages.CollectionMessageAckedNoChange,
				slog.String("message", msg.String()), slog.String("reason", err.Error()))
		}
		return nil
	case consts.ActionIgnore:
		return &pubsub.MessageIgnoreError{Err: err}
	default:
		logger.CtxError(ctx, log_messages.CollectionMessageFailed, err, slog.String("message", msg.String()))
		return err
	}
}
