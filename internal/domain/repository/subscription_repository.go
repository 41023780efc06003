package repository

import (
	"context"

	"github.com/pagebound/payment-service/internal/domain/entity"
)

// SubscriptionRepository persists the one active subscription per owner
type SubscriptionRepository interface {
	// GetByOwner retrieves the owner's subscription. Returns (nil, nil)
	// when the owner has none.
	GetByOwner(ctx context.Context, ownerID string) (*entity.SubscriptionRecord, error)

	// GetByExternalID retrieves a subscription by gateway subscription id.
	// Returns (nil, nil) when absent.
	GetByExternalID(ctx context.Context, externalID string) (*entity.SubscriptionRecord, error)

	// Replace upserts the record keyed by owner id as a single atomic
	// write. Readers observe either the previous record or the new one,
	// never a mix.
	Replace(ctx context.Context, record *entity.SubscriptionRecord) error

	// SetCancelAtPeriodEnd flips the two-phase cancellation flag without
	// destroying the record
	SetCancelAtPeriodEnd(ctx context.Context, externalID string, cancel bool) error

	// DeleteByExternalID removes the record once the gateway confirms the
	// final period has ended
	DeleteByExternalID(ctx context.Context, externalID string) error
}
