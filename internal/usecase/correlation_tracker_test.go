package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/usecase"
)

func productEvent(aggregateID string, expected int) *entity.NormalizedEvent {
	return &entity.NormalizedEvent{
		Kind:           entity.EventProductCreated,
		Gateway:        entity.GatewayStripe,
		GatewayEventID: "evt_" + aggregateID,
		OccurredAt:     time.Now().UTC().Truncate(time.Second),
		Product: &entity.ProductPayload{
			ProductID:  aggregateID,
			Name:       "Premium",
			PriceCount: expected,
		},
	}
}

func TestCorrelationTracker_RecordPrimary(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("primary then dependents completes on the last dependent", func(t *testing.T) {
		store := newMemStore()
		tracker := usecase.NewCorrelationTracker(store, logger)

		combined, err := tracker.RecordPrimary(ctx, "prod_1", 2, productEvent("prod_1", 2))
		assert.NoError(t, err)
		assert.Nil(t, combined)

		combined, err = tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)
		assert.Nil(t, combined)

		combined, err = tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)
		assert.NotNil(t, combined)
		assert.Equal(t, entity.EventProductCreated, combined.Kind)
		assert.Equal(t, "prod_1", combined.Product.ProductID)

		// Completion must leave no residual state behind
		assert.Equal(t, 0, store.keyCount())
		assert.Equal(t, 0, store.deadlineCount("corr:pending"))
	})

	t.Run("dependents arriving before the primary still complete", func(t *testing.T) {
		store := newMemStore()
		tracker := usecase.NewCorrelationTracker(store, logger)

		combined, err := tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)
		assert.Nil(t, combined)

		combined, err = tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)
		assert.Nil(t, combined)

		// The counter survived, so the primary completes on arrival
		combined, err = tracker.RecordPrimary(ctx, "prod_1", 2, productEvent("prod_1", 2))
		assert.NoError(t, err)
		assert.NotNil(t, combined)
		assert.Equal(t, "prod_1", combined.Product.ProductID)
		assert.Equal(t, 0, store.keyCount())
	})

	t.Run("duplicate primary is a no-op", func(t *testing.T) {
		store := newMemStore()
		tracker := usecase.NewCorrelationTracker(store, logger)

		_, err := tracker.RecordPrimary(ctx, "prod_1", 1, productEvent("prod_1", 1))
		assert.NoError(t, err)

		combined, err := tracker.RecordPrimary(ctx, "prod_1", 1, productEvent("prod_1", 1))
		assert.NoError(t, err)
		assert.Nil(t, combined)

		// The aggregate still completes exactly once
		combined, err = tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)
		assert.NotNil(t, combined)

		combined, err = tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)
		assert.Nil(t, combined)
	})

	t.Run("aggregates are independent", func(t *testing.T) {
		store := newMemStore()
		tracker := usecase.NewCorrelationTracker(store, logger)

		_, err := tracker.RecordPrimary(ctx, "prod_1", 1, productEvent("prod_1", 1))
		assert.NoError(t, err)
		_, err = tracker.RecordPrimary(ctx, "prod_2", 1, productEvent("prod_2", 1))
		assert.NoError(t, err)

		combined, err := tracker.RecordDependent(ctx, "prod_2")
		assert.NoError(t, err)
		assert.NotNil(t, combined)
		assert.Equal(t, "prod_2", combined.Product.ProductID)

		combined, err = tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)
		assert.Equal(t, "prod_1", combined.Product.ProductID)
	})
}

func TestCorrelationTracker_Sweep(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("timed out aggregate is surfaced exactly once", func(t *testing.T) {
		store := newMemStore()
		tracker := usecase.NewCorrelationTrackerWithTTL(store, logger, time.Minute)

		_, err := tracker.RecordPrimary(ctx, "prod_1", 3, productEvent("prod_1", 3))
		assert.NoError(t, err)
		_, err = tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)

		expired, err := tracker.Sweep(ctx, time.Now().Add(2*time.Minute))
		assert.NoError(t, err)
		assert.Len(t, expired, 1)
		assert.Equal(t, "prod_1", expired[0].AggregateID)
		assert.Equal(t, int64(1), expired[0].Received)
		assert.Equal(t, int64(3), expired[0].Expected)
		assert.Equal(t, entity.EventProductCreated, expired[0].Event.Kind)

		// The claim removed all state; a second sweep finds nothing
		again, err := tracker.Sweep(ctx, time.Now().Add(2*time.Minute))
		assert.NoError(t, err)
		assert.Empty(t, again)
		assert.Equal(t, 0, store.keyCount())
	})

	t.Run("state keys outlive the deadline until the sweeper claims them", func(t *testing.T) {
		store := newMemStore()
		current := time.Now()
		store.now = func() time.Time { return current }
		tracker := usecase.NewCorrelationTrackerWithTTL(store, logger, time.Minute)

		_, err := tracker.RecordPrimary(ctx, "prod_1", 3, productEvent("prod_1", 3))
		assert.NoError(t, err)
		_, err = tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)

		// The sweeper can lag the deadline by a full interval. The store
		// enforces its TTLs here, so an early key expiry would swallow
		// the alert.
		current = current.Add(90 * time.Second)
		expired, err := tracker.Sweep(ctx, current)
		assert.NoError(t, err)
		assert.Len(t, expired, 1)
		assert.Equal(t, "prod_1", expired[0].AggregateID)
		assert.Equal(t, int64(1), expired[0].Received)
		assert.Equal(t, int64(3), expired[0].Expected)
		assert.Equal(t, entity.EventProductCreated, expired[0].Event.Kind)

		again, err := tracker.Sweep(ctx, current)
		assert.NoError(t, err)
		assert.Empty(t, again)
		assert.Equal(t, 0, store.keyCount())
		assert.Equal(t, 0, store.deadlineCount("corr:pending"))
	})

	t.Run("aggregate inside its window is not swept", func(t *testing.T) {
		store := newMemStore()
		tracker := usecase.NewCorrelationTrackerWithTTL(store, logger, time.Hour)

		_, err := tracker.RecordPrimary(ctx, "prod_1", 2, productEvent("prod_1", 2))
		assert.NoError(t, err)

		expired, err := tracker.Sweep(ctx, time.Now())
		assert.NoError(t, err)
		assert.Empty(t, expired)
	})

	t.Run("completed aggregate never expires", func(t *testing.T) {
		store := newMemStore()
		tracker := usecase.NewCorrelationTrackerWithTTL(store, logger, time.Minute)

		_, err := tracker.RecordPrimary(ctx, "prod_1", 1, productEvent("prod_1", 1))
		assert.NoError(t, err)
		combined, err := tracker.RecordDependent(ctx, "prod_1")
		assert.NoError(t, err)
		assert.NotNil(t, combined)

		expired, err := tracker.Sweep(ctx, time.Now().Add(2*time.Minute))
		assert.NoError(t, err)
		assert.Empty(t, expired)
	})
}

// TestCorrelationTracker_ArrivalOrderings drives a four-part aggregate
// through every arrival permutation, injecting a duplicate primary while
// the aggregate is still open. Each run must emit exactly one combined
// event and leave no state behind.
func TestCorrelationTracker_ArrivalOrderings(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	// Part 0 is the primary, parts 1..3 are dependents
	for _, order := range permutations([]int{0, 1, 2, 3}) {
		t.Run(fmt.Sprintf("order %v", order), func(t *testing.T) {
			store := newMemStore()
			tracker := usecase.NewCorrelationTracker(store, logger)

			completed := 0
			for _, part := range order {
				var combined *entity.NormalizedEvent
				var err error
				if part == 0 {
					combined, err = tracker.RecordPrimary(ctx, "prod_1", 3, productEvent("prod_1", 3))
				} else {
					combined, err = tracker.RecordDependent(ctx, "prod_1")
				}
				assert.NoError(t, err)
				if combined != nil {
					completed++
					assert.Equal(t, "prod_1", combined.Product.ProductID)
					assert.Equal(t, entity.EventProductCreated, combined.Kind)
				}

				// Re-delivered primaries inside the window are no-ops;
				// exact duplicates of any sub-event are screened by event
				// id before the tracker sees them
				if part == 0 && completed == 0 {
					dup, err := tracker.RecordPrimary(ctx, "prod_1", 3, productEvent("prod_1", 3))
					assert.NoError(t, err)
					assert.Nil(t, dup)
				}
			}

			assert.Equal(t, 1, completed)
			assert.Equal(t, 0, store.keyCount())
			assert.Equal(t, 0, store.deadlineCount("corr:pending"))
		})
	}
}

func permutations(values []int) [][]int {
	if len(values) <= 1 {
		return [][]int{append([]int(nil), values...)}
	}
	var out [][]int
	for i := range values {
		rest := make([]int, 0, len(values)-1)
		rest = append(rest, values[:i]...)
		rest = append(rest, values[i+1:]...)
		for _, tail := range permutations(rest) {
			out = append(out, append([]int{values[i]}, tail...))
		}
	}
	return out
}
