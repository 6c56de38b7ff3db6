package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	pkgkafka "github.com/tmanjupriya-lang/inventory-management/pkg/kafka"
)

// ConsumerGroupAlerts is the consumer group of the low-stock alert worker.
const ConsumerGroupAlerts = "inventory-alerts"

var lowStockAlertsDelivered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "inventory_low_stock_alerts_delivered_total",
		Help: "Low-stock alerts handled by the alert consumer, by outcome",
	},
	[]string{"outcome"},
)

// Notifier delivers a low-stock alert to whoever watches stock.
type Notifier interface {
	NotifyLowStock(ctx context.Context, alert LowStockData) error
}

// CooldownStore is the go-redis subset used to rate-limit alerts per product.
type CooldownStore interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LowStockHandler consumes inventory.stock.low events. At most one alert per
// product is delivered within the cooldown window.
type LowStockHandler struct {
	notifier Notifier
	cooldown CooldownStore
	ttl      time.Duration
	logger   *slog.Logger
}

// NewLowStockHandler creates a handler. A nil store or zero ttl disables the cooldown.
func NewLowStockHandler(notifier Notifier, cooldown CooldownStore, ttl time.Duration, logger *slog.Logger) *LowStockHandler {
	return &LowStockHandler{
		notifier: notifier,
		cooldown: cooldown,
		ttl:      ttl,
		logger:   logger,
	}
}

func cooldownKey(productID string) string {
	return "inventory:alert:cooldown:" + productID
}

// Handle implements pkg/kafka.Handler.
func (h *LowStockHandler) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	var data LowStockData
	if err := evt.UnmarshalData(&data); err != nil {
		return fmt.Errorf("%w: unmarshal stock.low data: %v", pkgkafka.ErrPermanent, err)
	}
	if data.ProductID == "" {
		return fmt.Errorf("%w: stock.low event %s has no product id", pkgkafka.ErrPermanent, evt.EventID)
	}

	claimed := false
	if h.cooldown != nil && h.ttl > 0 {
		ok, err := h.cooldown.SetNX(ctx, cooldownKey(data.ProductID), evt.EventID, h.ttl).Result()
		switch {
		case err != nil:
			h.logger.WarnContext(ctx, "alert cooldown unavailable, delivering anyway",
				slog.String("product_id", data.ProductID),
				slog.String("error", err.Error()),
			)
		case !ok:
			lowStockAlertsDelivered.WithLabelValues("suppressed").Inc()
			h.logger.DebugContext(ctx, "low stock alert suppressed by cooldown",
				slog.String("product_id", data.ProductID),
			)
			return nil
		default:
			claimed = true
		}
	}

	if err := h.notifier.NotifyLowStock(ctx, data); err != nil {
		lowStockAlertsDelivered.WithLabelValues("failed").Inc()
		// Release the window so a retry is not swallowed by our own claim.
		if claimed {
			if delErr := h.cooldown.Del(ctx, cooldownKey(data.ProductID)).Err(); delErr != nil {
				h.logger.WarnContext(ctx, "failed to release alert cooldown",
					slog.String("product_id", data.ProductID),
					slog.String("error", delErr.Error()),
				)
			}
		}
		return fmt.Errorf("notify low stock for product %s: %w", data.ProductID, err)
	}

	lowStockAlertsDelivered.WithLabelValues("delivered").Inc()
	h.logger.InfoContext(ctx, "low stock alert delivered",
		slog.String("product_id", data.ProductID),
		slog.String("name", data.Name),
		slog.Int("stock_quantity", data.StockQuantity),
	)
	return nil
}
