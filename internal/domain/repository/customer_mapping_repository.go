package repository

import (
	"context"

	"github.com/pagebound/payment-service/internal/domain/entity"
)

// CustomerMappingRepository persists gateway customer id ↔ owner id links
type CustomerMappingRepository interface {
	// GetByOwner retrieves the mapping for an owner on a gateway. Returns
	// (nil, nil) when absent.
	GetByOwner(ctx context.Context, gateway entity.Gateway, ownerID string) (*entity.CustomerMapping, error)

	// GetByGatewayCustomerID resolves a gateway customer id back to an
	// owner. Returns (nil, nil) when absent.
	GetByGatewayCustomerID(ctx context.Context, gateway entity.Gateway, customerID string) (*entity.CustomerMapping, error)

	// InsertIfAbsent writes the mapping unless one already exists for the
	// (gateway, owner) pair, and returns the stored mapping either way.
	// Keeps gateway customer creation idempotent under retry.
	InsertIfAbsent(ctx context.Context, mapping *entity.CustomerMapping) (*entity.CustomerMapping, error)
}
