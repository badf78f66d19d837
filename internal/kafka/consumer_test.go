package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	fetchIdx int
	commits  []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchIdx < len(r.messages) {
		m := r.messages[r.fetchIdx]
		r.fetchIdx++
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	offsets := make([]int64, len(r.commits))
	for i, m := range r.commits {
		offsets[i] = m.Offset
	}
	return offsets
}

func newTestConsumer(reader *fakeReader, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:         reader,
		topic:          "payment-events",
		groupID:        "test-group",
		logger:         zap.NewNop(),
		handler:        handler,
		handlerTimeout: time.Second,
		retryBackoff:   time.Millisecond,
	}
}

func TestConsumeRetriesFailedMessageBeforeAdvancing(t *testing.T) {
	// Group offsets are a single high-water mark: committing offset 6 would
	// implicitly commit offset 5 as well, so a message whose handler failed
	// must be retried in place, never skipped.
	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "payment-events", Partition: 0, Offset: 5, Value: []byte("first")},
		{Topic: "payment-events", Partition: 0, Offset: 6, Value: []byte("second")},
	}}

	var mu sync.Mutex
	var handled []int64
	failuresLeft := 2
	handler := func(ctx context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if m.Offset == 5 && failuresLeft > 0 {
			failuresLeft--
			return errors.New("database unavailable")
		}
		handled = append(handled, m.Offset)
		return nil
	}

	consumer := newTestConsumer(reader, handler)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(ctx) }()

	require.Eventually(t, func() bool {
		return len(reader.committedOffsets()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}

	assert.Equal(t, []int64{5, 6}, reader.committedOffsets())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, failuresLeft)
	assert.Equal(t, []int64{5, 6}, handled)
}

func TestConsumeStopsDuringRetryWithoutCommitting(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "payment-events", Partition: 0, Offset: 5, Value: []byte("first")},
	}}

	attempted := make(chan struct{}, 1)
	handler := func(ctx context.Context, m kafka.Message) error {
		select {
		case attempted <- struct{}{}:
		default:
		}
		return errors.New("database unavailable")
	}

	consumer := newTestConsumer(reader, handler)
	consumer.retryBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(ctx) }()

	select {
	case <-attempted:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}

	// The failed message stays uncommitted so the group redelivers it.
	assert.Empty(t, reader.committedOffsets())
}
