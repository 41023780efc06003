package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	domainerrors "github.com/pagebound/payment-service/internal/domain/errors"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

// purchaseCacheTTL bounds the cached purchase-history view
const purchaseCacheTTL = 10 * time.Minute

// PurchaseLedger idempotently persists purchase records keyed by the
// gateway's own order/invoice id. The insert-if-absent write is the
// dedup boundary against retried PurchaseCompleted deliveries.
type PurchaseLedger struct {
	purchaseRepo repository.PurchaseRepository
	store        repository.KeyedStore
	logger       *zap.Logger
}

// NewPurchaseLedger creates a new purchase ledger
func NewPurchaseLedger(purchaseRepo repository.PurchaseRepository, store repository.KeyedStore, logger *zap.Logger) *PurchaseLedger {
	return &PurchaseLedger{
		purchaseRepo: purchaseRepo,
		store:        store,
		logger:       logger,
	}
}

// RecordPurchase writes the ledger entry for a completed purchase. When a
// record with the same gateway id already exists the existing record is
// returned unchanged and no write happens; the second return reports
// whether this call created the record.
func (l *PurchaseLedger) RecordPurchase(ctx context.Context, gateway entity.Gateway, payload *entity.PurchasePayload, occurredAt time.Time) (*entity.PurchaseRecord, bool, error) {
	record := &entity.PurchaseRecord{
		ID:           payload.OrderID,
		Gateway:      gateway,
		BoughtBy:     payload.BoughtBy,
		GiftFor:      payload.GiftFor,
		IsGift:       payload.GiftFor != "",
		Items:        payload.Items,
		Total:        payload.Total,
		PurchaseTime: occurredAt,
	}

	stored, created, err := l.purchaseRepo.InsertIfAbsent(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record purchase: %w", err)
	}

	if !created {
		l.logger.Info("Duplicate purchase delivery, returning existing record",
			zap.String("order_id", payload.OrderID),
			zap.String("gateway", string(gateway)))
		return stored, false, nil
	}

	l.logger.Info("Purchase recorded",
		zap.String("order_id", stored.ID),
		zap.String("bought_by", stored.BoughtBy),
		zap.Int64("total", stored.Total),
		zap.Bool("is_gift", stored.IsGift))

	l.invalidateHistory(ctx, stored.BoughtBy)
	if stored.IsGift {
		l.invalidateHistory(ctx, stored.GiftFor)
	}

	return stored, true, nil
}

// GetHistory returns the owner's purchase history, newest first. The
// first default page is served from the keyed store when warm.
func (l *PurchaseLedger) GetHistory(ctx context.Context, ownerID string, params entity.PaginationParams) ([]*entity.PurchaseRecord, entity.PaginationMeta, error) {
	params.Validate()

	cacheable := params.Page == entity.DefaultPage && params.Limit == entity.DefaultPageSize
	if cacheable {
		if records, meta, ok := l.cachedHistory(ctx, ownerID); ok {
			return records, meta, nil
		}
	}

	records, total, err := l.purchaseRepo.ListByOwner(ctx, ownerID, params)
	if err != nil {
		return nil, entity.PaginationMeta{}, fmt.Errorf("failed to list purchases: %w", err)
	}

	meta := entity.NewPaginationMeta(params.Page, params.Limit, total)

	if cacheable {
		l.cacheHistory(ctx, ownerID, records, meta)
	}

	return records, meta, nil
}

// AttachRefundStatus updates the refund/dispute state on an existing
// record. A missing record is reported as ErrRecordNotFound; callers on
// the webhook path tolerate it and still acknowledge the delivery.
func (l *PurchaseLedger) AttachRefundStatus(ctx context.Context, orderID string, status entity.RefundStatus) error {
	rows, err := l.purchaseRepo.SetRefundStatus(ctx, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to set refund status: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrRecordNotFound
	}

	record, err := l.purchaseRepo.GetByID(ctx, orderID)
	if err == nil && record != nil {
		l.invalidateHistory(ctx, record.BoughtBy)
	}

	l.logger.Info("Refund status attached",
		zap.String("order_id", orderID),
		zap.String("status", string(status)))

	return nil
}

type cachedHistoryView struct {
	Records []*entity.PurchaseRecord `json:"records"`
	Meta    entity.PaginationMeta    `json:"meta"`
}

func (l *PurchaseLedger) cachedHistory(ctx context.Context, ownerID string) ([]*entity.PurchaseRecord, entity.PaginationMeta, bool) {
	raw, err := l.store.Get(ctx, historyKey(ownerID))
	if err != nil {
		return nil, entity.PaginationMeta{}, false
	}
	var view cachedHistoryView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, entity.PaginationMeta{}, false
	}
	return view.Records, view.Meta, true
}

func (l *PurchaseLedger) cacheHistory(ctx context.Context, ownerID string, records []*entity.PurchaseRecord, meta entity.PaginationMeta) {
	payload, err := json.Marshal(cachedHistoryView{Records: records, Meta: meta})
	if err != nil {
		return
	}
	if err := l.store.Set(ctx, historyKey(ownerID), string(payload), purchaseCacheTTL); err != nil {
		l.logger.Warn("Failed to cache purchase history",
			zap.String("owner_id", ownerID),
			zap.Error(err))
	}
}

func (l *PurchaseLedger) invalidateHistory(ctx context.Context, ownerID string) {
	if ownerID == "" {
		return
	}
	if err := l.store.Delete(ctx, historyKey(ownerID)); err != nil {
		l.logger.Warn("Failed to invalidate purchase history cache",
			zap.String("owner_id", ownerID),
			zap.Error(err))
	}
}

func historyKey(ownerID string) string {
	return "purchases:" + ownerID
}
