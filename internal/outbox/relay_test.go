package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
)

type fakeStore struct {
	mu       sync.Mutex
	messages []*Message
}

func (s *fakeStore) ListPending(ctx context.Context, limit int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*Message
	for _, msg := range s.messages {
		if msg.SentAt == nil {
			pending = append(pending, msg)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, id := range ids {
		for _, msg := range s.messages {
			if msg.ID == id && msg.SentAt == nil {
				sentAt := now
				msg.SentAt = &sentAt
			}
		}
	}
	return nil
}

func (s *fakeStore) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, msg := range s.messages {
		if msg.SentAt == nil {
			count++
		}
	}
	return count
}

type fakeProducer struct {
	mu        sync.Mutex
	published []publishedMessage
	failKeys  map[string]int
}

type publishedMessage struct {
	topic string
	key   string
}

func (p *fakeProducer) Produce(ctx context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if remaining, ok := p.failKeys[string(key)]; ok && remaining > 0 {
		p.failKeys[string(key)] = remaining - 1
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, publishedMessage{topic: topic, key: string(key)})
	return nil
}

func newTestMessage(t *testing.T, e event.Event) *Message {
	t.Helper()
	msg, err := NewMessage(e)
	require.NoError(t, err)
	return msg
}

func TestRelayPublishesAndMarksSent(t *testing.T) {
	store := &fakeStore{messages: []*Message{
		newTestMessage(t, event.OrderCreated{OrderID: "order-1", UserID: "user-1", TotalAmount: 10}),
		newTestMessage(t, event.PaymentCompleted{OrderID: "order-2", UserID: "user-2", Amount: 20}),
	}}
	producer := &fakeProducer{}
	relay := NewRelay(store, producer, time.Second, 100, zap.NewNop())

	require.NoError(t, relay.processBatch(context.Background()))

	assert.Equal(t, 0, store.pendingCount())
	require.Len(t, producer.published, 2)
	assert.Equal(t, event.TopicOrderCreated, producer.published[0].topic)
	assert.Equal(t, "order-1", producer.published[0].key)
	assert.Equal(t, event.TopicPaymentCompleted, producer.published[1].topic)
	assert.Equal(t, "order-2", producer.published[1].key)
}

func TestRelayRetriesFailedPublish(t *testing.T) {
	// The first publish attempt for order-1 fails; the message must stay
	// pending and go out on a later pass while order-2 is unaffected.
	store := &fakeStore{messages: []*Message{
		newTestMessage(t, event.OrderCreated{OrderID: "order-1", UserID: "user-1", TotalAmount: 10}),
		newTestMessage(t, event.OrderCreated{OrderID: "order-2", UserID: "user-2", TotalAmount: 20}),
	}}
	producer := &fakeProducer{failKeys: map[string]int{"order-1": 1}}
	relay := NewRelay(store, producer, time.Second, 100, zap.NewNop())

	require.NoError(t, relay.processBatch(context.Background()))
	assert.Equal(t, 1, store.pendingCount())
	require.Len(t, producer.published, 1)
	assert.Equal(t, "order-2", producer.published[0].key)

	require.NoError(t, relay.processBatch(context.Background()))
	assert.Equal(t, 0, store.pendingCount())
	require.Len(t, producer.published, 2)
	assert.Equal(t, "order-1", producer.published[1].key)
}

func TestRelaySkipsUndecodableMessage(t *testing.T) {
	broken := &Message{
		ID:          "broken",
		EventType:   "order_shipped",
		AggregateID: "order-1",
		Payload:     []byte(`{}`),
		CreatedAt:   time.Now(),
	}
	store := &fakeStore{messages: []*Message{
		broken,
		newTestMessage(t, event.OrderCreated{OrderID: "order-2", UserID: "user-2", TotalAmount: 20}),
	}}
	producer := &fakeProducer{}
	relay := NewRelay(store, producer, time.Second, 100, zap.NewNop())

	require.NoError(t, relay.processBatch(context.Background()))

	assert.Nil(t, broken.SentAt)
	require.Len(t, producer.published, 1)
	assert.Equal(t, "order-2", producer.published[0].key)
}

func TestRelayStopsOnContextCancel(t *testing.T) {
	store := &fakeStore{}
	producer := &fakeProducer{}
	relay := NewRelay(store, producer, 10*time.Millisecond, 100, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after context cancellation")
	}
}

func TestNewMessageSnapshotsEvent(t *testing.T) {
	evt := event.PaymentFailed{OrderID: "order-9", UserID: "user-9", Amount: 5, Reason: "account not found"}
	msg := newTestMessage(t, evt)

	assert.Equal(t, event.TypePaymentFailed, msg.EventType)
	assert.Equal(t, "order-9", msg.AggregateID)
	assert.Nil(t, msg.SentAt)

	decoded, err := event.Decode(msg.EventType, msg.Payload)
	require.NoError(t, err)
	failed, ok := decoded.(event.PaymentFailed)
	require.True(t, ok)
	assert.Equal(t, "account not found", failed.Reason)
}
