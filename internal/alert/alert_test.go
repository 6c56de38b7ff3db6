package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/internal/event"
	"github.com/tmanjupriya-lang/inventory-management/pkg/httpclient"
	pkgkafka "github.com/tmanjupriya-lang/inventory-management/pkg/kafka"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mockPublisher struct {
	mock.Mock
	mu  sync.Mutex
	got []domain.StockLevel
}

func (m *mockPublisher) PublishLowStock(ctx context.Context, level domain.StockLevel, threshold int) error {
	m.mu.Lock()
	m.got = append(m.got, level)
	m.mu.Unlock()
	args := m.Called(ctx, level, threshold)
	return args.Error(0)
}

func (m *mockPublisher) levels() []domain.StockLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StockLevel(nil), m.got...)
}

func TestDispatcher_OnlyBelowThreshold(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishLowStock", mock.Anything, mock.Anything, 5).Return(nil)

	d := NewDispatcher(pub, 5, time.Second, newTestLogger())
	d.StockChanged(context.Background(), []domain.StockLevel{
		{ProductID: "p-1", Name: "A", Quantity: 4},
		{ProductID: "p-2", Name: "B", Quantity: 5},
		{ProductID: "p-3", Name: "C", Quantity: 0},
		{ProductID: "p-4", Name: "D", Quantity: 100},
	})
	require.NoError(t, d.Close(context.Background()))

	ids := make([]string, 0)
	for _, l := range pub.levels() {
		ids = append(ids, l.ProductID)
	}
	assert.ElementsMatch(t, []string{"p-1", "p-3"}, ids)
}

func TestDispatcher_PublishErrorIsSwallowed(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishLowStock", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	d := NewDispatcher(pub, 5, time.Second, newTestLogger())
	assert.NotPanics(t, func() {
		d.StockChanged(context.Background(), []domain.StockLevel{{ProductID: "p-1", Quantity: 1}})
	})
	require.NoError(t, d.Close(context.Background()))
	pub.AssertNumberOfCalls(t, "PublishLowStock", 1)
}

func TestDispatcher_SurvivesRequestCancellation(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("PublishLowStock", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(pub, 5, time.Second, newTestLogger())
	d.StockChanged(ctx, []domain.StockLevel{{ProductID: "p-1", Quantity: 1}})
	require.NoError(t, d.Close(context.Background()))
	pub.AssertExpectations(t)
}

func TestDispatcher_ClosedDropsAlerts(t *testing.T) {
	pub := &mockPublisher{}
	d := NewDispatcher(pub, 5, time.Second, newTestLogger())
	require.NoError(t, d.Close(context.Background()))

	d.StockChanged(context.Background(), []domain.StockLevel{{ProductID: "p-1", Quantity: 1}})
	pub.AssertNotCalled(t, "PublishLowStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_CloseHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	pub := &mockPublisher{}
	pub.On("PublishLowStock", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(nil)

	d := NewDispatcher(pub, 5, time.Minute, newTestLogger())
	d.StockChanged(context.Background(), []domain.StockLevel{{ProductID: "p-1", Quantity: 1}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

type countingPublisher struct {
	mu       sync.Mutex
	inFlight int
	done     int
}

func (p *countingPublisher) PublishLowStock(context.Context, domain.StockLevel, int) error {
	p.mu.Lock()
	p.inFlight++
	p.mu.Unlock()

	time.Sleep(time.Millisecond)

	p.mu.Lock()
	p.inFlight--
	p.done++
	p.mu.Unlock()
	return nil
}

func (p *countingPublisher) snapshot() (inFlight, done int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight, p.done
}

func TestDispatcher_CloseWhileRaising(t *testing.T) {
	pub := &countingPublisher{}
	d := NewDispatcher(pub, 5, time.Second, newTestLogger())

	var raisers sync.WaitGroup
	for i := 0; i < 20; i++ {
		raisers.Add(1)
		go func() {
			defer raisers.Done()
			for j := 0; j < 10; j++ {
				d.StockChanged(context.Background(), []domain.StockLevel{{ProductID: "p-1", Quantity: 1}})
			}
		}()
	}

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, d.Close(context.Background()))

	inFlight, done := pub.snapshot()
	assert.Zero(t, inFlight)

	raisers.Wait()
	time.Sleep(5 * time.Millisecond)
	_, after := pub.snapshot()
	assert.Equal(t, done, after, "no publish may start once Close has returned")
}

func TestDispatcher_NilPublisherLogsOnly(t *testing.T) {
	d := NewDispatcher(nil, 5, time.Second, newTestLogger())
	assert.NotPanics(t, func() {
		d.StockChanged(context.Background(), []domain.StockLevel{{ProductID: "p-1", Quantity: 1}})
	})
	require.NoError(t, d.Close(context.Background()))
}

func newWebhookClient() *httpclient.CircuitBreakerClient {
	cfg := httpclient.Config{
		Timeout:         2 * time.Second,
		MaxRetries:      0,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    time.Millisecond,
		MaxConnsPerHost: 2,
	}
	return httpclient.NewCircuitBreakerClient(httpclient.New(cfg), httpclient.DefaultCircuitBreakerConfig("alert-webhook-test"), newTestLogger())
}

func sampleAlert() event.LowStockData {
	return event.LowStockData{
		ProductID:     "p-1",
		Name:          "Widget",
		StockQuantity: 2,
		Threshold:     5,
		DetectedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestWebhookNotifier_Delivers(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, newWebhookClient(), newTestLogger())
	require.NoError(t, n.NotifyLowStock(context.Background(), sampleAlert()))

	assert.Equal(t, "low_stock", got.Type)
	assert.Equal(t, "p-1", got.ProductID)
	assert.Equal(t, 2, got.StockQuantity)
	assert.Equal(t, "2026-03-01T10:00:00Z", got.DetectedAt)
}

func TestWebhookNotifier_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_INPUT","message":"unknown product"}}`))
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, newWebhookClient(), newTestLogger()).
		NotifyLowStock(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)
	assert.Contains(t, err.Error(), "unknown product")
}

func TestWebhookNotifier_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, newWebhookClient(), newTestLogger()).
		NotifyLowStock(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.NotErrorIs(t, err, pkgkafka.ErrPermanent)
}

func TestWebhookNotifier_NoURLLogs(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewWebhookNotifier("", nil, l).NotifyLowStock(context.Background(), sampleAlert()))
	assert.Contains(t, buf.String(), `"msg":"low stock alert"`)
	assert.Contains(t, buf.String(), `"product_id":"p-1"`)
}
