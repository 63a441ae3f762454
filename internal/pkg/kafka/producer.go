package kafka

import (
	"context"
	"fmt"
	"time"

	"installment-ledger/internal/pkg/config"
	"installment-ledger/internal/pkg/log_messages"
	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/service/interfaces"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const deliveryTimeout = 10 * time.Second

// ProducerInterface is the subset of *kafka.Producer we use.
type ProducerInterface interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaProducer publishes ledger events to one topic and waits for the delivery report.
type KafkaProducer struct {
	producer ProducerInterface
	topic    string
}

var _ interfaces.KafkaProducerInterface = (*KafkaProducer)(nil)

func NewKafkaProducer(cfg config.KafkaConfig) (*KafkaProducer, error) {
	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers":  cfg.Server,
		"security.protocol":  cfg.SecurityProtocol,
		"sasl.mechanisms":    cfg.SASLMechanism,
		"sasl.username":      cfg.SASLUsername,
		"sasl.password":      cfg.SASLPassword,
		"client.id":          cfg.ClientID,
		"enable.idempotence": true,
	}

	producer, err := kafka.NewProducer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	logger.Info(log_messages.KafkaProducerCreated)

	return &KafkaProducer{
		producer: producer,
		topic:    cfg.LedgerTopic,
	}, nil
}

// Publish sends msg and blocks until the broker acknowledges it, the context ends, or the
// delivery timeout passes.
func (kp *KafkaProducer) Publish(ctx context.Context, msg []byte) error {
	deliveryChan := make(chan kafka.Event, 1)

	err := kp.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &kp.topic, Partition: kafka.PartitionAny},
		Value:          msg,
	}, deliveryChan)
	if err != nil {
		logger.CtxError(ctx, "Failed to produce Kafka message", err)
		return err
	}

	timer := time.NewTimer(deliveryTimeout)
	defer timer.Stop()

	select {
	case ev := <-deliveryChan:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected event type %T", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout waiting for Kafka delivery report")
	}

	return nil
}

// Close flushes and closes the Kafka producer.
func (kp *KafkaProducer) Close() error {
	kp.producer.Flush(5000)
	kp.producer.Close()
	return nil
}
