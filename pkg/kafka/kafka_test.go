package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ============================================================================
// Fakes
// ============================================================================

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then blocks until ctx is canceled.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	r.cancel()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	r.committed = append(r.committed, msgs...)
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) Close() error { return nil }

type mockDLQ struct{ mock.Mock }

func (m *mockDLQ) Publish(ctx context.Context, msg kafka.Message, lastErr error, group string) error {
	args := m.Called(ctx, msg, lastErr, group)
	return args.Error(0)
}

func eventMessage(t *testing.T, offset int64) kafka.Message {
	t.Helper()
	ev, err := NewEvent("stock.low", "prod-1", "product", "test", map[string]int{"stock": 2})
	require.NoError(t, err)
	value, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Topic: "inventory.stock.low", Offset: offset, Value: value}
}

// ============================================================================
// Event and producer
// ============================================================================

func TestTopic(t *testing.T) {
	assert.Equal(t, "inventory.stock.low", Topic("stock", "low"))
	assert.Equal(t, "inventory.dlq.inventory.stock.low", DLQTopic("inventory.stock.low"))
}

func TestNewEvent_RoundTrip(t *testing.T) {
	ev, err := NewEvent("checkout.completed", "user-1", "cart", "inventory-service", map[string]int{"lines": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, 1, ev.Version)

	raw, err := json.Marshal(ev.WithCorrelationID("corr-9"))
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "corr-9", decoded.CorrelationID)

	var data map[string]int
	require.NoError(t, decoded.UnmarshalData(&data))
	assert.Equal(t, 3, data["lines"])
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: newTestLogger()}

	ev, err := NewEvent("stock.low", "prod-1", "product", "inventory-service", struct{}{})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), "inventory.stock.low", ev.WithCorrelationID("c-1")))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "inventory.stock.low", msg.Topic)
	assert.Equal(t, []byte("prod-1"), msg.Key)

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "stock.low", carrier.Get("event_type"))
	assert.Equal(t, "c-1", carrier.Get("correlation_id"))
}

func TestProducer_PublishError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, logger: newTestLogger()}
	ev, _ := NewEvent("stock.low", "prod-1", "product", "inventory-service", struct{}{})

	err := p.Publish(context.Background(), "inventory.stock.low", ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	c := NewHeaderCarrier(&headers)

	c.Set("a", "2")
	c.Set("b", "3")
	assert.Equal(t, "2", c.Get("a"))
	assert.Equal(t, "3", c.Get("b"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}

// ============================================================================
// Consumer
// ============================================================================

func runConsumer(t *testing.T, r *fakeReader, handler Handler, dlq DeadLetterPublisher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cancel = cancel

	c := newConsumer(r, ConsumerConfig{GroupID: "g", Topic: "inventory.stock.low", MaxRetries: 3, RetryBackoff: time.Millisecond}, handler, dlq, newTestLogger())
	require.NoError(t, c.Start(ctx))
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 1), eventMessage(t, 2)}}

	var seen []string
	runConsumer(t, r, func(_ context.Context, ev *Event) error {
		seen = append(seen, ev.AggregateID)
		return nil
	}, nil)

	assert.Equal(t, []string{"prod-1", "prod-1"}, seen)
	assert.Len(t, r.committed, 2)
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 7)}}
	dlq := &mockDLQ{}
	dlq.On("Publish", mock.Anything, mock.MatchedBy(func(m kafka.Message) bool { return m.Offset == 7 }), mock.Anything, "g").Return(nil)

	attempts := 0
	runConsumer(t, r, func(context.Context, *Event) error {
		attempts++
		return fmt.Errorf("webhook down")
	}, dlq)

	assert.Equal(t, 3, attempts)
	assert.Len(t, r.committed, 1)
	dlq.AssertExpectations(t)
}

func TestConsumer_PermanentErrorSkipsRetries(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{eventMessage(t, 1)}}
	dlq := &mockDLQ{}
	dlq.On("Publish", mock.Anything, mock.Anything, mock.Anything, "g").Return(nil)

	attempts := 0
	runConsumer(t, r, func(context.Context, *Event) error {
		attempts++
		return fmt.Errorf("bad payload: %w", ErrPermanent)
	}, dlq)

	assert.Equal(t, 1, attempts)
	dlq.AssertExpectations(t)
}

func TestConsumer_UndecodableMessageCommitted(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Topic: "inventory.stock.low", Value: []byte("not json")}}}

	called := false
	runConsumer(t, r, func(context.Context, *Event) error {
		called = true
		return nil
	}, nil)

	assert.False(t, called)
	assert.Len(t, r.committed, 1)
}

func TestDLQProducer_Headers(t *testing.T) {
	w := &fakeWriter{}
	d := &DLQProducer{writer: w, logger: newTestLogger()}

	msg := kafka.Message{Topic: "inventory.stock.low", Partition: 2, Offset: 42, Key: []byte("k"), Value: []byte("v")}
	require.NoError(t, d.Publish(context.Background(), msg, errors.New("boom"), "inventory-alerts"))

	require.Len(t, w.msgs, 1)
	out := w.msgs[0]
	assert.Equal(t, "inventory.dlq.inventory.stock.low", out.Topic)

	c := NewHeaderCarrier(&out.Headers)
	assert.Equal(t, "2", c.Get("dlq.original_partition"))
	assert.Equal(t, "42", c.Get("dlq.original_offset"))
	assert.Equal(t, "inventory-alerts", c.Get("dlq.consumer_group"))
	assert.Equal(t, "boom", c.Get("dlq.error"))
}

// ============================================================================
// Idempotency
// ============================================================================

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, newTestLogger())

	ev := &Event{EventID: "e-1", EventType: "stock.low"}
	require.NoError(t, h(context.Background(), ev))
	require.NoError(t, h(context.Background(), ev))
	assert.Equal(t, 1, calls)
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	h := IdempotentHandler(store, func(context.Context, *Event) error { return errors.New("fail") }, newTestLogger())

	require.Error(t, h(context.Background(), &Event{EventID: "e-2"}))
	seen, err := store.Contains(context.Background(), "e-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Millisecond)
	require.NoError(t, store.Add(context.Background(), "e-3"))
	time.Sleep(5 * time.Millisecond)

	seen, err := store.Contains(context.Background(), "e-3")
	require.NoError(t, err)
	assert.False(t, seen)
}

type mockRedis struct{ mock.Mock }

func (m *mockRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func TestRedisIdempotencyStore(t *testing.T) {
	rdb := &mockRedis{}
	rdb.On("Exists", mock.Anything, []string{"alerts:e-1"}).Return(redis.NewIntResult(1, nil))
	rdb.On("Exists", mock.Anything, []string{"alerts:e-2"}).Return(redis.NewIntResult(0, nil))
	rdb.On("Set", mock.Anything, "alerts:e-2", 1, time.Hour).Return(redis.NewStatusResult("OK", nil))

	store := NewRedisIdempotencyStore(rdb, "alerts", time.Hour)

	seen, err := store.Contains(context.Background(), "e-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.Contains(context.Background(), "e-2")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(context.Background(), "e-2"))
	rdb.AssertExpectations(t)
}

func TestRedisIdempotencyStore_Error(t *testing.T) {
	rdb := &mockRedis{}
	rdb.On("Exists", mock.Anything, mock.Anything).Return(redis.NewIntResult(0, errors.New("connection refused")))

	_, err := NewRedisIdempotencyStore(rdb, "alerts", time.Hour).Contains(context.Background(), "e-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis exists")
}
