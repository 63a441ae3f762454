package interfaces

import (
	"context"

	"installment-ledger/internal/pkg/store/models"
)

// KafkaProducerInterface is the raw producer used by the ledger event publisher.
//
//go:generate mockgen -destination=mocks/mock_kafka_publisher.go -package=mocks -source=kafka_publisher_interface.go
type KafkaProducerInterface interface {
	Publish(ctx context.Context, msg []byte) error
}

// LedgerEventPublisherInterface publishes one ledger movement.
type LedgerEventPublisherInterface interface {
	PublishLedgerEvent(ctx context.Context, entry models.CollectionHistory, sequenceNumber, totalInSeries int) error
}
