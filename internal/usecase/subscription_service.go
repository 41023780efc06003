package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/domain/provider"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

// SubscriptionService applies lifecycle transitions to the one active
// subscription record per owner. Upgrades and downgrades are a single
// atomic replace so readers never observe a mix of old product and new
// price. Cancellation is two-phase: the flag first, deletion only once
// the gateway confirms the final period has ended.
type SubscriptionService struct {
	subscriptionRepo repository.SubscriptionRepository
	mappingRepo      repository.CustomerMappingRepository
	gateways         map[entity.Gateway]provider.PaymentGateway
	logger           *zap.Logger
}

// NewSubscriptionService creates a new subscription lifecycle service
func NewSubscriptionService(
	subscriptionRepo repository.SubscriptionRepository,
	mappingRepo repository.CustomerMappingRepository,
	gateways map[entity.Gateway]provider.PaymentGateway,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		mappingRepo:      mappingRepo,
		gateways:         gateways,
		logger:           logger,
	}
}

// GetCurrent returns the owner's active subscription, or nil
func (s *SubscriptionService) GetCurrent(ctx context.Context, ownerID string) (*entity.SubscriptionRecord, error) {
	if ownerID == "" {
		return nil, domainerrors.ErrValidationFailed
	}
	return s.subscriptionRepo.GetByOwner(ctx, ownerID)
}

// Apply dispatches a normalized subscription event to the matching
// lifecycle transition
func (s *SubscriptionService) Apply(ctx context.Context, event *entity.NormalizedEvent) error {
	payload := event.Subscription
	if payload == nil {
		return fmt.Errorf("subscription event %s has no payload", event.GatewayEventID)
	}

	switch event.Kind {
	case entity.EventSubscriptionCreated:
		return s.applyReplace(ctx, event.Gateway, payload)

	case entity.EventSubscriptionUpdated:
		if payload.CancelAtEnd {
			// Phase one of cancellation: the record survives with the
			// flag set until the period actually ends
			existing, err := s.subscriptionRepo.GetByExternalID(ctx, payload.ExternalID)
			if err != nil {
				return err
			}
			if existing == nil {
				return domainerrors.ErrSubscriptionNotFound
			}
			if err := s.subscriptionRepo.SetCancelAtPeriodEnd(ctx, payload.ExternalID, true); err != nil {
				return err
			}
			s.logger.Info("Subscription flagged for cancellation at period end",
				zap.String("external_id", payload.ExternalID),
				zap.String("owner_id", existing.OwnerID))
			return nil
		}
		return s.applyReplace(ctx, event.Gateway, payload)

	case entity.EventSubscriptionCancelled:
		// Phase two: the gateway confirmed the final period has ended
		if err := s.subscriptionRepo.DeleteByExternalID(ctx, payload.ExternalID); err != nil {
			return err
		}
		s.logger.Info("Subscription removed after final period",
			zap.String("external_id", payload.ExternalID))
		return nil

	default:
		return fmt.Errorf("not a subscription event: %s", event.Kind)
	}
}

// applyReplace upserts the record keyed by owner. Used for creation,
// renewal and upgrade/downgrade alike; the repository's replace is the
// single atomic write that keeps partial state unobservable.
func (s *SubscriptionService) applyReplace(ctx context.Context, gateway entity.Gateway, payload *entity.SubscriptionPayload) error {
	ownerID, giftedBy, err := s.resolveOwner(ctx, gateway, payload)
	if err != nil {
		return err
	}

	existing, err := s.subscriptionRepo.GetByExternalID(ctx, payload.ExternalID)
	if err != nil {
		return err
	}
	if existing != nil && giftedBy == "" {
		giftedBy = existing.GiftedBy
	}

	record := &entity.SubscriptionRecord{
		Provider:          gateway,
		ExternalID:        payload.ExternalID,
		OwnerID:           ownerID,
		GiftedBy:          giftedBy,
		PriceID:           payload.PriceID,
		ProductID:         payload.ProductID,
		PeriodStart:       payload.PeriodStart,
		PeriodEnd:         payload.PeriodEnd,
		CancelAtPeriodEnd: payload.CancelAtEnd,
		UpdatedAt:         time.Now(),
	}

	if err := s.subscriptionRepo.Replace(ctx, record); err != nil {
		return fmt.Errorf("failed to replace subscription: %w", err)
	}

	s.logger.Info("Subscription replaced",
		zap.String("external_id", record.ExternalID),
		zap.String("owner_id", record.OwnerID),
		zap.String("price_id", record.PriceID),
		zap.Bool("gift", record.GiftedBy != ""),
		zap.Time("period_end", record.PeriodEnd))

	return nil
}

// RequestCancellation starts the two-phase cancel for the caller's own
// subscription. Permission is evaluated against the record's owner, not
// the gifter.
func (s *SubscriptionService) RequestCancellation(ctx context.Context, ownerID, externalID string) error {
	record, err := s.subscriptionRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if record == nil {
		return domainerrors.ErrNoActiveSubscription
	}
	if record.ExternalID != externalID {
		return domainerrors.ErrNotSubscriptionOwner
	}

	gateway, ok := s.gateways[record.Provider]
	if !ok {
		return fmt.Errorf("no gateway registered for provider %s", record.Provider)
	}
	if err := gateway.CancelAtPeriodEnd(ctx, externalID); err != nil {
		return fmt.Errorf("gateway cancellation failed: %w", err)
	}

	if err := s.subscriptionRepo.SetCancelAtPeriodEnd(ctx, externalID, true); err != nil {
		return err
	}

	s.logger.Info("Cancellation requested",
		zap.String("external_id", externalID),
		zap.String("owner_id", ownerID))

	return nil
}

// resolveOwner attributes the record. Gifted subscriptions belong to the
// recipient; the buyer is retained for audit only.
func (s *SubscriptionService) resolveOwner(ctx context.Context, gateway entity.Gateway, payload *entity.SubscriptionPayload) (ownerID, giftedBy string, err error) {
	ownerID = payload.OwnerID
	giftedBy = payload.GiftedBy

	if ownerID == "" && payload.CustomerID != "" {
		mapping, mapErr := s.mappingRepo.GetByGatewayCustomerID(ctx, gateway, payload.CustomerID)
		if mapErr != nil {
			return "", "", mapErr
		}
		if mapping != nil {
			ownerID = mapping.OwnerID
		}
	}

	if ownerID == "" {
		return "", "", domainerrors.ErrNoCustomerMapping
	}
	return ownerID, giftedBy, nil
}
