package alert

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmanjupriya-lang/inventory-management/internal/event"
	"github.com/tmanjupriya-lang/inventory-management/pkg/httpclient"
	pkgkafka "github.com/tmanjupriya-lang/inventory-management/pkg/kafka"
)

// JSONPoster is satisfied by httpclient.CircuitBreakerClient.
type JSONPoster interface {
	PostJSON(ctx context.Context, url string, payload any) (*http.Response, error)
}

// WebhookPayload is the body POSTed to the alert webhook.
type WebhookPayload struct {
	Type          string `json:"type"`
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	StockQuantity int    `json:"stock_quantity"`
	Threshold     int    `json:"threshold"`
	DetectedAt    string `json:"detected_at"`
}

// WebhookNotifier delivers low-stock alerts to an HTTP endpoint. Without a
// URL it writes the alert to the log instead.
type WebhookNotifier struct {
	url    string
	client JSONPoster
	logger *slog.Logger
}

func NewWebhookNotifier(url string, client JSONPoster, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: client, logger: logger}
}

// NotifyLowStock implements event.Notifier. A 4xx from the receiver is
// marked permanent so the consumer dead-letters it without retrying.
func (n *WebhookNotifier) NotifyLowStock(ctx context.Context, alert event.LowStockData) error {
	if n.url == "" || n.client == nil {
		n.logger.WarnContext(ctx, "low stock alert",
			slog.String("product_id", alert.ProductID),
			slog.String("name", alert.Name),
			slog.Int("stock_quantity", alert.StockQuantity),
			slog.Int("threshold", alert.Threshold),
		)
		return nil
	}

	payload := WebhookPayload{
		Type:          "low_stock",
		ProductID:     alert.ProductID,
		Name:          alert.Name,
		StockQuantity: alert.StockQuantity,
		Threshold:     alert.Threshold,
		DetectedAt:    alert.DetectedAt.UTC().Format(time.RFC3339),
	}

	resp, err := n.client.PostJSON(ctx, n.url, payload)
	if err != nil {
		return fmt.Errorf("post alert webhook: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_ = resp.Body.Close()
		return nil
	}

	status := resp.StatusCode
	err = httpclient.ParseResponseError(resp, "alert webhook")
	if httpclient.IsClientError(status) {
		return fmt.Errorf("%w: %w", pkgkafka.ErrPermanent, err)
	}
	return err
}
