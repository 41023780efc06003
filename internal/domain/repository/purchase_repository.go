package repository

import (
	"context"

	"github.com/pagebound/payment-service/internal/domain/entity"
)

// PurchaseRepository persists ledger entries. InsertIfAbsent is the
// idempotency boundary: concurrent inserts with the same id must resolve
// to exactly one row.
type PurchaseRepository interface {
	// InsertIfAbsent writes the record unless one with the same id already
	// exists. Returns the stored record and whether this call created it.
	InsertIfAbsent(ctx context.Context, record *entity.PurchaseRecord) (*entity.PurchaseRecord, bool, error)

	// GetByID retrieves a purchase by gateway order/invoice id. Returns
	// (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*entity.PurchaseRecord, error)

	// ListByOwner returns the owner's purchase history, newest first
	ListByOwner(ctx context.Context, ownerID string, params entity.PaginationParams) ([]*entity.PurchaseRecord, int64, error)

	// SetRefundStatus attaches a refund/dispute status to an existing
	// record. Returns the number of rows touched.
	SetRefundStatus(ctx context.Context, id string, status entity.RefundStatus) (int64, error)
}
