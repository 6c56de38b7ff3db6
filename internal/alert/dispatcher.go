// Package alert raises low-stock alerts once stock writes have committed and
// delivers them to an external webhook.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
)

var lowStockAlertsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "inventory_low_stock_alerts_total",
		Help: "Low-stock alerts raised after committed stock changes, by publish result",
	},
	[]string{"result"},
)

// LowStockPublisher is satisfied by event.Producer.
type LowStockPublisher interface {
	PublishLowStock(ctx context.Context, level domain.StockLevel, threshold int) error
}

// Dispatcher publishes a low-stock event for every committed stock level
// below the threshold. Publishing happens in the background; callers never
// wait on the broker and never see its errors.
type Dispatcher struct {
	publisher LowStockPublisher
	threshold int
	timeout   time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil publisher logs alerts only.
func NewDispatcher(publisher LowStockPublisher, threshold int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

// StockChanged inspects levels left by a committed write.
func (d *Dispatcher) StockChanged(ctx context.Context, levels []domain.StockLevel) {
	for _, level := range levels {
		if level.Quantity >= d.threshold {
			continue
		}
		d.raise(ctx, level)
	}
}

func (d *Dispatcher) raise(ctx context.Context, level domain.StockLevel) {
	if d.publisher == nil {
		lowStockAlertsTotal.WithLabelValues("logged").Inc()
		d.logger.WarnContext(ctx, "low stock",
			slog.String("product_id", level.ProductID),
			slog.String("name", level.Name),
			slog.Int("stock_quantity", level.Quantity),
		)
		return
	}
	// Add happens under mu so it can never race with Close's Wait.
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		lowStockAlertsTotal.WithLabelValues("dropped").Inc()
		d.logger.WarnContext(ctx, "dispatcher closed, low stock alert dropped",
			slog.String("product_id", level.ProductID),
		)
		return
	}

	d.wg.Add(1)
	d.mu.Unlock()

	// Keep request values (correlation id, span) but not its cancellation.
	bg := context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()

		pubCtx, cancel := context.WithTimeout(bg, d.timeout)
		defer cancel()

		if err := d.publisher.PublishLowStock(pubCtx, level, d.threshold); err != nil {
			lowStockAlertsTotal.WithLabelValues("failed").Inc()
			d.logger.ErrorContext(pubCtx, "failed to publish low stock alert",
				slog.String("product_id", level.ProductID),
				slog.String("error", err.Error()),
			)
			return
		}
		lowStockAlertsTotal.WithLabelValues("published").Inc()
	}()
}

// Close stops accepting alerts and waits for in-flight publishes or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
