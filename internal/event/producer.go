package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	pkgkafka "github.com/tmanjupriya-lang/inventory-management/pkg/kafka"
	"github.com/tmanjupriya-lang/inventory-management/pkg/logger"
)

// Kafka topics produced by the inventory service.
var (
	TopicStockLow          = pkgkafka.Topic("stock", "low")
	TopicCheckoutCompleted = pkgkafka.Topic("checkout", "completed")
)

const (
	AggregateTypeProduct = "product"
	AggregateTypeCart    = "cart"

	SourceInventoryService = "inventory-service"
)

// LowStockData is the payload of an inventory.stock.low event.
type LowStockData struct {
	ProductID     string    `json:"product_id"`
	Name          string    `json:"name"`
	StockQuantity int       `json:"stock_quantity"`
	Threshold     int       `json:"threshold"`
	DetectedAt    time.Time `json:"detected_at"`
}

// CheckoutCompletedData is the payload of an inventory.checkout.completed event.
type CheckoutCompletedData struct {
	UserID     string             `json:"user_id"`
	Lines      []CheckoutLineData `json:"lines"`
	GrandTotal int64              `json:"grand_total"`
}

type CheckoutLineData struct {
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	TotalPrice  int64  `json:"total_price"`
}

// Publisher is the part of pkg/kafka.Producer the event producer uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes inventory domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewProducer creates a new event producer for the inventory service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PublishLowStock publishes an inventory.stock.low event for one product.
func (p *Producer) PublishLowStock(ctx context.Context, level domain.StockLevel, threshold int) error {
	data := LowStockData{
		ProductID:     level.ProductID,
		Name:          level.Name,
		StockQuantity: level.Quantity,
		Threshold:     threshold,
		DetectedAt:    p.now(),
	}

	evt, err := pkgkafka.NewEvent(TopicStockLow, level.ProductID, AggregateTypeProduct, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create stock.low event: %w", err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicStockLow, evt); err != nil {
		return fmt.Errorf("publish stock.low event: %w", err)
	}

	p.logger.DebugContext(ctx, "published stock.low event",
		slog.String("product_id", level.ProductID),
		slog.Int("stock_quantity", level.Quantity),
	)
	return nil
}

// PublishCheckoutCompleted publishes an inventory.checkout.completed event.
func (p *Producer) PublishCheckoutCompleted(ctx context.Context, userID string, result *domain.CheckoutResult) error {
	data := CheckoutCompletedData{
		UserID:     userID,
		Lines:      make([]CheckoutLineData, 0, len(result.Purchases)),
		GrandTotal: result.GrandTotal,
	}
	for _, rec := range result.Purchases {
		line := CheckoutLineData{
			ProductName: rec.ProductName,
			Quantity:    rec.Quantity,
			TotalPrice:  rec.TotalPrice,
		}
		if rec.ProductID != nil {
			line.ProductID = *rec.ProductID
		}
		data.Lines = append(data.Lines, line)
	}

	evt, err := pkgkafka.NewEvent(TopicCheckoutCompleted, userID, AggregateTypeCart, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create checkout.completed event: %w", err)
	}
	evt.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, TopicCheckoutCompleted, evt); err != nil {
		return fmt.Errorf("publish checkout.completed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published checkout.completed event",
		slog.String("user_id", userID),
		slog.Int("lines", len(data.Lines)),
	)
	return nil
}
