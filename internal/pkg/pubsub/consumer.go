package pubsub

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"installment-ledger/internal/pkg/logger"
	"installment-ledger/internal/service/interfaces"

	"cloud.google.com/go/pubsub/v2"
)

const restartDelay = 5 * time.Second

// PubSubClientFactory makes new clients (mockable in tests).
type PubSubClientFactory interface {
	NewPubSubClient(ctx context.Context, projectID string) (interfaces.PubSubClientInterface, error)
}

type defaultPubSubClientFactory struct{}

func (f *defaultPubSubClientFactory) NewPubSubClient(ctx context.Context,
	projectID string) (interfaces.PubSubClientInterface, error) {
	sdkClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &pubSubClientAdapter{client: sdkClient}, nil
}

type pubSubClientAdapter struct {
	client *pubsub.Client
}

func (c *pubSubClientAdapter) Subscriber(subscription string) interfaces.SubscriberInterface {
	return &subscriberAdapter{sub: c.client.Subscriber(subscription)}
}

func (c *pubSubClientAdapter) Close() error {
	return c.client.Close()
}

type subscriberAdapter struct {
	sub *pubsub.Subscriber
}

func (s *subscriberAdapter) Receive(ctx context.Context, f func(context.Context, interfaces.MessageInterface)) error {
	return s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		ctx = logger.WithTraceID(ctx, m.ID)
		f(ctx, &messageAdapter{msg: m})
	})
}

func (s *subscriberAdapter) SetMaxExtension(d time.Duration) {
	s.sub.ReceiveSettings.MaxExtension = d
}

func (s *subscriberAdapter) SetMaxOutstandingMessages(n int) {
	if n > 0 {
		s.sub.ReceiveSettings.MaxOutstandingMessages = n
	}
}

type messageAdapter struct {
	msg *pubsub.Message
}

func (m *messageAdapter) Data() []byte {
	return m.msg.Data
}

func (m *messageAdapter) Ack() {
	m.msg.Ack()
}

func (m *messageAdapter) Nack() {
	m.msg.Nack()
}

// PubSubConsumer manages subscription consuming with lifecycle.
type PubSubConsumer struct {
	PubSubClient   interfaces.PubSubClientInterface
	MaxOutstanding int
	Ctx            context.Context
	Cancel         context.CancelFunc
	restartDelay   time.Duration
}

// NewPubSubConsumer is the default constructor for production use.
// Declared as a variable so tests can replace it.
var NewPubSubConsumer = func(ctx context.Context, projectID string) (*PubSubConsumer, error) {
	return NewPubSubConsumerWithFactory(ctx, projectID, &defaultPubSubClientFactory{})
}

func NewPubSubConsumerWithFactory(ctx context.Context, projectID string,
	factory PubSubClientFactory) (*PubSubConsumer, error) {
	client, err := factory.NewPubSubClient(ctx, projectID)
	if err != nil {
		logger.CtxError(ctx, "Failed creating PubSub client", err)
		return nil, err
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	return &PubSubConsumer{
		PubSubClient: client,
		Ctx:          consumerCtx,
		Cancel:       cancel,
		restartDelay: restartDelay,
	}, nil
}

// Consume receives from one subscription until ctx ends or Receive fails. A handler error
// wrapping MessageIgnoreError leaves the message unacknowledged; any other error NACKs.
func (c *PubSubConsumer) Consume(ctx context.Context, subscription string,
	handler func(ctx context.Context, msg []byte) error) error {
	sub := c.PubSubClient.Subscriber(subscription)
	sub.SetMaxExtension(-1)
	sub.SetMaxOutstandingMessages(c.MaxOutstanding)
	return sub.Receive(ctx, func(ctx context.Context, m interfaces.MessageInterface) {
		err := handler(ctx, m.Data())
		if err == nil {
			logger.CtxDebug(ctx, "Acked the message")
			m.Ack()
			return
		}

		var ignoreErr *MessageIgnoreError
		if errors.As(err, &ignoreErr) {
			if ignoreErr.Err != nil {
				logger.CtxInfo(ctx, "Message processing ignored, will be redelivered",
					slog.String("reason", ignoreErr.Err.Error()))
				return
			}
			logger.CtxInfo(ctx, "Message processing ignored, will be redelivered")
			return
		}

		logger.CtxInfo(ctx, "Nacked the message for immediate retry", slog.String("reason", err.Error()))
		m.Nack()
	})
}

// StartConsumer keeps a Receive loop alive until the consumer context is cancelled.
func (c *PubSubConsumer) StartConsumer(subscription string, handler func(ctx context.Context, msg []byte) error) {
	go func() {
		logger.CtxInfo(c.Ctx, "PubSub consumer starting", slog.String("subscription", subscription))

		for {
			if c.Ctx.Err() != nil {
				logger.CtxInfo(c.Ctx, "PubSub consumer loop exiting due to context cancellation")
				return
			}

			if err := c.Consume(c.Ctx, subscription, handler); err != nil {
				logger.CtxError(c.Ctx, "Error consuming messages, restarting", err)
			} else {
				logger.CtxInfo(c.Ctx, "PubSub consumer stopped without error, restarting")
			}

			select {
			case <-c.Ctx.Done():
			case <-time.After(c.restartDelay):
			}
		}
	}()
}

func (c *PubSubConsumer) Close() error {
	if c.Cancel != nil {
		c.Cancel()
	}
	return c.PubSubClient.Close()
}
