package repository

import (
	"context"

	"github.com/pagebound/payment-service/internal/domain/entity"
)

// PlanRepository caches gateway product/price pairs locally
type PlanRepository interface {
	// Upsert writes or refreshes a plan keyed by (gateway, product, price)
	Upsert(ctx context.Context, plan *entity.Plan) error

	// ListByGateway returns all cached plans for a gateway
	ListByGateway(ctx context.Context, gateway entity.Gateway) ([]*entity.Plan, error)
}
