package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"installment-ledger/internal/service/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	subscriber *mockSubscriber
	closed     bool
}

func (m *mockClient) Subscriber(subscription string) interfaces.SubscriberInterface {
	return m.subscriber
}

func (m *mockClient) Close() error {
	m.closed = true
	return nil
}

type mockSubscriber struct {
	messages       [][]byte
	recvErr        error
	calls          int32
	produced       []*mockMessage
	maxExtension   time.Duration
	maxOutstanding int
}

func (s *mockSubscriber) Receive(ctx context.Context, f func(ctx context.Context, m interfaces.MessageInterface)) error {
	atomic.AddInt32(&s.calls, 1)
	if s.recvErr != nil {
		return s.recvErr
	}
	for _, msg := range s.messages {
		mm := &mockMessage{data: msg}
		s.produced = append(s.produced, mm)
		f(ctx, mm)
	}
	return nil
}

func (s *mockSubscriber) SetMaxExtension(d time.Duration) { s.maxExtension = d }

func (s *mockSubscriber) SetMaxOutstandingMessages(n int) { s.maxOutstanding = n }

type mockMessage struct {
	data   []byte
	acked  bool
	nacked bool
}

func (m *mockMessage) Data() []byte { return m.data }
func (m *mockMessage) Ack()         { m.acked = true }
func (m *mockMessage) Nack()        { m.nacked = true }

type mockFactory struct {
	client interfaces.PubSubClientInterface
	err    error
}

func (m *mockFactory) NewPubSubClient(ctx context.Context, projectID string) (interfaces.PubSubClientInterface, error) {
	return m.client, m.err
}

func TestNewPubSubConsumerWithFactory(t *testing.T) {
	client := &mockClient{subscriber: &mockSubscriber{}}
	consumer, err := NewPubSubConsumerWithFactory(context.Background(), "project", &mockFactory{client: client})
	require.NoError(t, err)
	assert.Equal(t, client, consumer.PubSubClient)

	_, err = NewPubSubConsumerWithFactory(context.Background(), "project", &mockFactory{err: errors.New("no creds")})
	assert.Error(t, err)
}

func TestConsume_AckNackIgnore(t *testing.T) {
	sub := &mockSubscriber{messages: [][]byte{[]byte("ok"), []byte("busy"), []byte("bad")}}
	consumer := &PubSubConsumer{PubSubClient: &mockClient{subscriber: sub}, MaxOutstanding: 10}

	err := consumer.Consume(context.Background(), "collections", func(ctx context.Context, msg []byte) error {
		switch string(msg) {
		case "busy":
			return fmt.Errorf("wrapped: %w", &MessageIgnoreError{Err: errors.New("lock held")})
		case "bad":
			return errors.New("db down")
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, sub.produced, 3)
	assert.True(t, sub.produced[0].acked)
	assert.False(t, sub.produced[1].acked)
	assert.False(t, sub.produced[1].nacked)
	assert.True(t, sub.produced[2].nacked)
	assert.Equal(t, time.Duration(-1), sub.maxExtension)
	assert.Equal(t, 10, sub.maxOutstanding)
}

func TestConsume_IgnoreWithoutCause(t *testing.T) {
	sub := &mockSubscriber{messages: [][]byte{[]byte("x")}}
	consumer := &PubSubConsumer{PubSubClient: &mockClient{subscriber: sub}}

	_ = consumer.Consume(context.Background(), "s", func(ctx context.Context, msg []byte) error {
		return &MessageIgnoreError{}
	})
	assert.False(t, sub.produced[0].acked)
	assert.False(t, sub.produced[0].nacked)
}

func TestStartConsumer_RestartsUntilClosed(t *testing.T) {
	sub := &mockSubscriber{recvErr: errors.New("stream reset")}
	client := &mockClient{subscriber: sub}
	consumer, err := NewPubSubConsumerWithFactory(context.Background(), "p", &mockFactory{client: client})
	require.NoError(t, err)
	consumer.restartDelay = time.Millisecond

	consumer.StartConsumer("s", func(ctx context.Context, msg []byte) error { return nil })

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&sub.calls) >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, consumer.Close())
	assert.True(t, client.closed)
}

func TestMessageIgnoreError(t *testing.T) {
	cause := errors.New("busy")
	err := &MessageIgnoreError{Err: cause}
	assert.Contains(t, err.Error(), "busy")
	assert.ErrorIs(t, err, cause)
}
