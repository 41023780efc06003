package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/config"
	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/usecase"
)

// WebhookNotifier posts purchase and operator notifications to configured
// webhook URLs. Delivery is fire and forget: failures are logged, never
// propagated, and never block payment processing.
type WebhookNotifier struct {
	purchaseURL string
	alertURL    string
	client      *http.Client
	logger      *zap.Logger
}

// NewWebhookNotifier creates the notifier. Empty URLs disable the
// corresponding channel.
func NewWebhookNotifier(cfg *config.NotifyConfig, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		purchaseURL: cfg.WebhookURL,
		alertURL:    cfg.AlertURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

var _ usecase.Notifier = (*WebhookNotifier)(nil)

// PurchaseCompleted announces a newly recorded purchase
func (n *WebhookNotifier) PurchaseCompleted(ctx context.Context, record *entity.PurchaseRecord) {
	title := "Purchase completed"
	if record.IsGift {
		title = "Gift purchase completed"
	}

	n.post(ctx, n.purchaseURL, map[string]interface{}{
		"content": fmt.Sprintf("%s: order %s, %d item(s), total %d",
			title, record.ID, len(record.Items), record.Total),
		"embeds": []map[string]interface{}{
			{
				"title": title,
				"fields": []map[string]string{
					{"name": "Order", "value": record.ID},
					{"name": "Gateway", "value": string(record.Gateway)},
					{"name": "Buyer", "value": record.BoughtBy},
				},
			},
		},
	})
}

// CorrelationExpired raises the operator alert for a timed-out aggregate
func (n *WebhookNotifier) CorrelationExpired(ctx context.Context, expired usecase.ExpiredAggregate) {
	n.post(ctx, n.alertURL, map[string]interface{}{
		"content": fmt.Sprintf("Event correlation expired: aggregate %s received %d of %d sub-events",
			expired.AggregateID, expired.Received, expired.Expected),
	})
}

// DisputeOpened raises the operator alert for a new dispute
func (n *WebhookNotifier) DisputeOpened(ctx context.Context, orderID, reason string) {
	n.post(ctx, n.alertURL, map[string]interface{}{
		"content": fmt.Sprintf("Dispute opened on order %s: %s", orderID, reason),
	})
}

func (n *WebhookNotifier) post(ctx context.Context, url string, payload map[string]interface{}) {
	if url == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("Failed to encode notification", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		n.logger.Warn("Failed to build notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Notification delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("Notification rejected",
			zap.Int("status_code", resp.StatusCode))
	}
}
