package event

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	pkgkafka "github.com/tmanjupriya-lang/inventory-management/pkg/kafka"
	"github.com/tmanjupriya-lang/inventory-management/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, topic string, evt *pkgkafka.Event) error {
	args := m.Called(ctx, topic, evt)
	return args.Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyLowStock(ctx context.Context, alert LowStockData) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type mockCooldown struct{ mock.Mock }

func (m *mockCooldown) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *mockCooldown) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "inventory.stock.low", TopicStockLow)
	assert.Equal(t, "inventory.checkout.completed", TopicCheckoutCompleted)
}

func TestProducer_PublishLowStock(t *testing.T) {
	pub := &mockPublisher{}
	var captured *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicStockLow, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	p := NewProducer(pub, newTestLogger())
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	err := p.PublishLowStock(ctx, domain.StockLevel{ProductID: "p-1", Name: "Widget", Quantity: 3}, 5)
	require.NoError(t, err)
	require.NotNil(t, captured)

	assert.Equal(t, TopicStockLow, captured.EventType)
	assert.Equal(t, "p-1", captured.AggregateID)
	assert.Equal(t, AggregateTypeProduct, captured.AggregateType)
	assert.Equal(t, "corr-1", captured.CorrelationID)

	var data LowStockData
	require.NoError(t, captured.UnmarshalData(&data))
	assert.Equal(t, "Widget", data.Name)
	assert.Equal(t, 3, data.StockQuantity)
	assert.Equal(t, 5, data.Threshold)
	pub.AssertExpectations(t)
}

func TestProducer_PublishError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, TopicStockLow, mock.Anything).Return(errors.New("broker down"))

	err := NewProducer(pub, newTestLogger()).
		PublishLowStock(context.Background(), domain.StockLevel{ProductID: "p-1", Name: "Widget"}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish stock.low event")
}

func TestProducer_PublishCheckoutCompleted(t *testing.T) {
	pub := &mockPublisher{}
	var captured *pkgkafka.Event
	pub.On("Publish", mock.Anything, TopicCheckoutCompleted, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	pid := "p-1"
	result := domain.NewCheckoutResult([]domain.PurchaseRecord{
		{ProductID: &pid, ProductName: "Widget", Quantity: 2, UnitPrice: 250, TotalPrice: 500},
		{ProductName: "Gone", Quantity: 1, UnitPrice: 100, TotalPrice: 100},
	})

	require.NoError(t, NewProducer(pub, newTestLogger()).PublishCheckoutCompleted(context.Background(), "u-1", &result))

	var data CheckoutCompletedData
	require.NoError(t, captured.UnmarshalData(&data))
	assert.Equal(t, "u-1", data.UserID)
	assert.Equal(t, int64(600), data.GrandTotal)
	require.Len(t, data.Lines, 2)
	assert.Equal(t, "p-1", data.Lines[0].ProductID)
	assert.Empty(t, data.Lines[1].ProductID)
}

func lowStockEvent(t *testing.T, data LowStockData) *pkgkafka.Event {
	t.Helper()
	evt, err := pkgkafka.NewEvent(TopicStockLow, data.ProductID, AggregateTypeProduct, SourceInventoryService, data)
	require.NoError(t, err)
	return evt
}

func TestLowStockHandler_Delivers(t *testing.T) {
	data := LowStockData{ProductID: "p-1", Name: "Widget", StockQuantity: 2, Threshold: 5}
	evt := lowStockEvent(t, data)

	notifier := &mockNotifier{}
	notifier.On("NotifyLowStock", mock.Anything, mock.MatchedBy(func(a LowStockData) bool {
		return a.ProductID == "p-1" && a.StockQuantity == 2
	})).Return(nil)

	store := &mockCooldown{}
	store.On("SetNX", mock.Anything, "inventory:alert:cooldown:p-1", evt.EventID, time.Minute).
		Return(redis.NewBoolResult(true, nil))

	h := NewLowStockHandler(notifier, store, time.Minute, newTestLogger())
	require.NoError(t, h.Handle(context.Background(), evt))

	notifier.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestLowStockHandler_SuppressedByCooldown(t *testing.T) {
	evt := lowStockEvent(t, LowStockData{ProductID: "p-1", StockQuantity: 1})

	notifier := &mockNotifier{}
	store := &mockCooldown{}
	store.On("SetNX", mock.Anything, "inventory:alert:cooldown:p-1", evt.EventID, time.Minute).
		Return(redis.NewBoolResult(false, nil))

	h := NewLowStockHandler(notifier, store, time.Minute, newTestLogger())
	require.NoError(t, h.Handle(context.Background(), evt))

	notifier.AssertNotCalled(t, "NotifyLowStock", mock.Anything, mock.Anything)
}

func TestLowStockHandler_FailureReleasesCooldown(t *testing.T) {
	evt := lowStockEvent(t, LowStockData{ProductID: "p-1", StockQuantity: 1})

	notifier := &mockNotifier{}
	notifier.On("NotifyLowStock", mock.Anything, mock.Anything).Return(errors.New("webhook down"))

	store := &mockCooldown{}
	store.On("SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(redis.NewBoolResult(true, nil))
	store.On("Del", mock.Anything, []string{"inventory:alert:cooldown:p-1"}).
		Return(redis.NewIntResult(1, nil))

	h := NewLowStockHandler(notifier, store, time.Minute, newTestLogger())
	err := h.Handle(context.Background(), evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
	store.AssertExpectations(t)
}

func TestLowStockHandler_CooldownErrorStillDelivers(t *testing.T) {
	evt := lowStockEvent(t, LowStockData{ProductID: "p-1", StockQuantity: 1})

	notifier := &mockNotifier{}
	notifier.On("NotifyLowStock", mock.Anything, mock.Anything).Return(nil)

	store := &mockCooldown{}
	store.On("SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(redis.NewBoolResult(false, errors.New("connection refused")))

	h := NewLowStockHandler(notifier, store, time.Minute, newTestLogger())
	require.NoError(t, h.Handle(context.Background(), evt))
	notifier.AssertExpectations(t)
}

func TestLowStockHandler_NoCooldownStore(t *testing.T) {
	evt := lowStockEvent(t, LowStockData{ProductID: "p-1", StockQuantity: 0})

	notifier := &mockNotifier{}
	notifier.On("NotifyLowStock", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, NewLowStockHandler(notifier, nil, 0, newTestLogger()).Handle(context.Background(), evt))
	notifier.AssertNumberOfCalls(t, "NotifyLowStock", 1)
}

func TestLowStockHandler_MalformedPayloadIsPermanent(t *testing.T) {
	evt := &pkgkafka.Event{EventID: "e-1", Data: []byte(`"not an object"`)}

	err := NewLowStockHandler(&mockNotifier{}, nil, 0, newTestLogger()).Handle(context.Background(), evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)

	evt = &pkgkafka.Event{EventID: "e-2", Data: []byte(`{}`)}
	err = NewLowStockHandler(&mockNotifier{}, nil, 0, newTestLogger()).Handle(context.Background(), evt)
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)
}
