package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/domain/provider"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

// eventDedupTTL bounds how long a gateway event id is remembered for
// duplicate screening. Gateways stop retrying well inside this window.
const eventDedupTTL = 72 * time.Hour

// Notifier is the fire-and-forget downstream notification sink. Delivery
// failures are logged by implementations and never propagate.
type Notifier interface {
	PurchaseCompleted(ctx context.Context, record *entity.PurchaseRecord)
	CorrelationExpired(ctx context.Context, expired ExpiredAggregate)
	DisputeOpened(ctx context.Context, orderID, reason string)
}

// WebhookProcessor is the ingestion pipeline: verify, dedup, normalize,
// correlate, then commit to the ledger or subscription lifecycle. It runs
// inside stateless concurrent request handlers; every mutation goes
// through atomic store or repository operations. Returns an error only
// when verification does not pass, either a forged delivery or a
// gateway-side outage during the checks; anything past verification is
// logged, recorded for replay and acknowledged, so gateway retry storms
// cannot build up.
type WebhookProcessor struct {
	gateways     map[entity.Gateway]provider.PaymentGateway
	normalizer   *Normalizer
	tracker      *CorrelationTracker
	ledger       *PurchaseLedger
	subscription *SubscriptionService
	planRepo     repository.PlanRepository
	auditRepo    repository.EventAuditRepository
	store        repository.KeyedStore
	notifier     Notifier
	logger       *zap.Logger
}

// NewWebhookProcessor creates a new webhook processor
func NewWebhookProcessor(
	gateways map[entity.Gateway]provider.PaymentGateway,
	normalizer *Normalizer,
	tracker *CorrelationTracker,
	ledger *PurchaseLedger,
	subscription *SubscriptionService,
	planRepo repository.PlanRepository,
	auditRepo repository.EventAuditRepository,
	store repository.KeyedStore,
	notifier Notifier,
	logger *zap.Logger,
) *WebhookProcessor {
	return &WebhookProcessor{
		gateways:     gateways,
		normalizer:   normalizer,
		tracker:      tracker,
		ledger:       ledger,
		subscription: subscription,
		planRepo:     planRepo,
		auditRepo:    auditRepo,
		store:        store,
		notifier:     notifier,
		logger:       logger,
	}
}

// Process handles one inbound webhook delivery for the named gateway
func (p *WebhookProcessor) Process(ctx context.Context, gateway entity.Gateway, body []byte, header http.Header) error {
	gw, ok := p.gateways[gateway]
	if !ok {
		return fmt.Errorf("no gateway registered for %s", gateway)
	}

	raw, err := gw.VerifyWebhook(ctx, body, header)
	if err != nil {
		p.logger.Error("Webhook verification failed",
			zap.String("gateway", string(gateway)),
			zap.Error(err))
		if transientVerificationFailure(err) {
			return fmt.Errorf("%w: %s", domainerrors.ErrGatewayUnavailable, err.Error())
		}
		return fmt.Errorf("%w: %s", domainerrors.ErrAuthenticationFailed, err.Error())
	}

	// Dedup before any state mutation. The same key screens correlation
	// increments and ledger writes from double-processing.
	created, err := p.store.SetIfAbsent(ctx, dedupKey(gateway, raw.ID), "1", eventDedupTTL)
	if err != nil {
		// Screening unavailable; the ledger's insert-if-absent still
		// holds the idempotency line, so continue
		p.logger.Warn("Event dedup check unavailable",
			zap.String("event_id", raw.ID),
			zap.Error(err))
	} else if !created {
		p.logger.Info("Duplicate webhook delivery acknowledged",
			zap.String("gateway", string(gateway)),
			zap.String("event_id", raw.ID))
		return nil
	}

	if err := p.auditRepo.SaveEvent(ctx, gateway, raw.ID, raw.Type, raw.Data); err != nil {
		p.logger.Error("Failed to audit webhook event",
			zap.String("event_id", raw.ID),
			zap.Error(err))
	}

	normalized, err := p.normalizer.Normalize(gateway, raw)
	if err != nil {
		p.failEvent(ctx, raw.ID, err)
		return nil
	}

	if normalized.Ignored() {
		p.logger.Info("Webhook event ignored",
			zap.String("gateway", string(gateway)),
			zap.String("event_id", raw.ID),
			zap.String("reason", normalized.IgnoredReason))
		if err := p.auditRepo.MarkIgnored(ctx, raw.ID, normalized.IgnoredReason); err != nil {
			p.logger.Warn("Failed to mark event ignored", zap.Error(err))
		}
		return nil
	}

	event := normalized.Event

	if normalized.Correlation != nil {
		event, err = p.correlate(ctx, normalized)
		if err != nil {
			p.failEvent(ctx, raw.ID, err)
			return nil
		}
		if event == nil {
			// Aggregate still waiting for more sub-events
			if err := p.auditRepo.MarkProcessed(ctx, raw.ID); err != nil {
				p.logger.Warn("Failed to mark event processed", zap.Error(err))
			}
			return nil
		}
	}

	if err := p.dispatch(ctx, event); err != nil {
		p.failEvent(ctx, raw.ID, err)
		return nil
	}

	if err := p.auditRepo.MarkProcessed(ctx, raw.ID); err != nil {
		p.logger.Warn("Failed to mark event processed", zap.Error(err))
	}

	return nil
}

// correlate feeds one sub-event to the tracker and returns the combined
// event when the aggregate completes
func (p *WebhookProcessor) correlate(ctx context.Context, normalized *Normalized) (*entity.NormalizedEvent, error) {
	part := normalized.Correlation
	if part.Primary {
		return p.tracker.RecordPrimary(ctx, part.AggregateID, part.Expected, normalized.Event)
	}
	return p.tracker.RecordDependent(ctx, part.AggregateID)
}

// dispatch routes a complete domain event to its owner component
func (p *WebhookProcessor) dispatch(ctx context.Context, event *entity.NormalizedEvent) error {
	switch event.Kind {
	case entity.EventPurchaseCompleted:
		record, created, err := p.ledger.RecordPurchase(ctx, event.Gateway, event.Purchase, event.OccurredAt)
		if err != nil {
			return err
		}
		if created {
			p.notifier.PurchaseCompleted(ctx, record)
		}
		return nil

	case entity.EventSubscriptionCreated, entity.EventSubscriptionUpdated, entity.EventSubscriptionCancelled:
		return p.subscription.Apply(ctx, event)

	case entity.EventProductCreated:
		return p.syncPlans(ctx, event)

	case entity.EventRefundIssued, entity.EventDisputeOpened, entity.EventDisputeClosed:
		return p.applyRefund(ctx, event)

	default:
		return fmt.Errorf("unroutable event kind: %s", event.Kind)
	}
}

// syncPlans refreshes the local plan catalog once a product aggregate
// completes, pulling the authoritative price list from the gateway
func (p *WebhookProcessor) syncPlans(ctx context.Context, event *entity.NormalizedEvent) error {
	gw := p.gateways[event.Gateway]
	plans, err := gw.ListPrices(ctx, event.Product.ProductID)
	if err != nil {
		return fmt.Errorf("failed to list gateway prices: %w", err)
	}

	for i := range plans {
		plans[i].Gateway = event.Gateway
		if plans[i].Name == "" {
			plans[i].Name = event.Product.Name
		}
		if err := p.planRepo.Upsert(ctx, &plans[i]); err != nil {
			return fmt.Errorf("failed to upsert plan: %w", err)
		}
	}

	p.logger.Info("Plan catalog refreshed",
		zap.String("product_id", event.Product.ProductID),
		zap.Int("plans", len(plans)))

	return nil
}

func (p *WebhookProcessor) applyRefund(ctx context.Context, event *entity.NormalizedEvent) error {
	status := entity.RefundStatus(event.Refund.Status)
	err := p.ledger.AttachRefundStatus(ctx, event.Refund.OrderID, status)
	if err != nil {
		if errors.Is(err, domainerrors.ErrRecordNotFound) {
			// Reported but not fatal; the delivery is still acknowledged
			p.logger.Warn("Refund event for unknown purchase",
				zap.String("order_id", event.Refund.OrderID),
				zap.String("event_id", event.GatewayEventID))
			return nil
		}
		return err
	}

	if event.Kind == entity.EventDisputeOpened {
		p.notifier.DisputeOpened(ctx, event.Refund.OrderID, event.Refund.Reason)
	}

	return nil
}

// StartExpirySweeper launches the background loop that turns timed-out
// correlations into operator alerts. Returns when ctx is cancelled.
func (p *WebhookProcessor) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := p.tracker.Sweep(ctx, time.Now())
			if err != nil {
				p.logger.Error("Correlation sweep failed", zap.Error(err))
				continue
			}
			for _, agg := range expired {
				p.notifier.CorrelationExpired(ctx, agg)
			}
		}
	}
}

func (p *WebhookProcessor) failEvent(ctx context.Context, eventID string, cause error) {
	p.logger.Error("Webhook event processing failed",
		zap.String("event_id", eventID),
		zap.Error(cause))
	if err := p.auditRepo.MarkFailed(ctx, eventID, cause); err != nil {
		p.logger.Warn("Failed to mark event failed", zap.Error(err))
	}
}

// transientVerificationFailure distinguishes a gateway-side outage during
// verification, such as a signing certificate fetch or a thin-resource
// dereference that failed, from an actual bad signature. Those deliveries
// are refused as retryable instead of being branded forgeries.
func transientVerificationFailure(err error) bool {
	var providerErr *provider.ProviderError
	if !errors.As(err, &providerErr) {
		return false
	}
	switch providerErr.Code {
	case "CERT_FETCH_FAILED", "REQUEST_ERROR", "API_ERROR", "RESPONSE_ERROR", "AUTH_ERROR":
		return true
	}
	return false
}

func dedupKey(gateway entity.Gateway, eventID string) string {
	return "evt:" + string(gateway) + ":" + eventID
}
