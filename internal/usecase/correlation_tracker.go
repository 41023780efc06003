package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/repository"
)

const (
	// CorrelationTTL bounds how long a partial aggregate may wait for its
	// remaining sub-events before it is surfaced as expired
	CorrelationTTL = 15 * time.Minute

	// correlationDeadlineIndex is the keyed-store index of pending aggregates
	correlationDeadlineIndex = "corr:pending"
)

// ExpiredAggregate describes a correlation that timed out with sub-events
// still missing. Surfaced as an operator alert, never silently dropped.
type ExpiredAggregate struct {
	AggregateID string
	Received    int64
	Expected    int64
	Event       *entity.NormalizedEvent
}

// CorrelationTracker assembles one logical domain event out of N
// asynchronous sub-events: a primary event carrying the payload plus a
// known number of dependents. Sub-events arrive in any order, possibly
// duplicated, possibly handled by concurrent request handlers with no
// shared memory, so every state transition is an atomic keyed-store
// operation. Counter state survives a dependent arriving before its
// primary.
type CorrelationTracker struct {
	store  repository.KeyedStore
	logger *zap.Logger
	ttl    time.Duration
}

// NewCorrelationTracker creates a new correlation tracker
func NewCorrelationTracker(store repository.KeyedStore, logger *zap.Logger) *CorrelationTracker {
	return &CorrelationTracker{
		store:  store,
		logger: logger,
		ttl:    CorrelationTTL,
	}
}

// NewCorrelationTrackerWithTTL creates a tracker with a custom TTL
func NewCorrelationTrackerWithTTL(store repository.KeyedStore, logger *zap.Logger, ttl time.Duration) *CorrelationTracker {
	return &CorrelationTracker{
		store:  store,
		logger: logger,
		ttl:    ttl,
	}
}

// RecordPrimary stores the primary sub-event's payload and the number of
// dependents it expects. If enough dependents already arrived the
// aggregate completes immediately and the combined event is returned;
// otherwise nil is returned and the aggregate waits. A duplicate primary
// for an already-waiting aggregate is a no-op.
func (t *CorrelationTracker) RecordPrimary(ctx context.Context, aggregateID string, expected int, event *entity.NormalizedEvent) (*entity.NormalizedEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode primary event: %w", err)
	}

	created, err := t.store.SetIfAbsent(ctx, t.payloadKey(aggregateID), string(payload), t.retention())
	if err != nil {
		return nil, fmt.Errorf("failed to store primary payload: %w", err)
	}
	if !created {
		t.logger.Info("Duplicate primary sub-event ignored",
			zap.String("aggregate_id", aggregateID))
		return nil, nil
	}

	if _, err := t.store.SetIfAbsent(ctx, t.expectedKey(aggregateID), strconv.Itoa(expected), t.retention()); err != nil {
		return nil, fmt.Errorf("failed to store expected count: %w", err)
	}

	if err := t.store.AddDeadline(ctx, correlationDeadlineIndex, aggregateID, time.Now().Add(t.ttl)); err != nil {
		return nil, fmt.Errorf("failed to index correlation deadline: %w", err)
	}

	t.logger.Info("Correlation opened",
		zap.String("aggregate_id", aggregateID),
		zap.Int("expected", expected))

	// Dependents may have arrived first; their counter is durable, so the
	// aggregate can complete the moment the primary lands
	received, err := t.receivedCount(ctx, aggregateID)
	if err != nil {
		return nil, err
	}
	if received >= int64(expected) {
		return t.tryComplete(ctx, aggregateID)
	}

	return nil, nil
}

// RecordDependent counts one dependent sub-event toward the aggregate.
// Returns the combined event when this dependent completes it, nil while
// the aggregate is still waiting or the primary has not arrived yet.
// Duplicate deliveries must be screened out by event id before this call.
func (t *CorrelationTracker) RecordDependent(ctx context.Context, aggregateID string) (*entity.NormalizedEvent, error) {
	received, err := t.store.Increment(ctx, t.receivedKey(aggregateID), t.retention())
	if err != nil {
		return nil, fmt.Errorf("failed to count dependent sub-event: %w", err)
	}

	expectedRaw, err := t.store.Get(ctx, t.expectedKey(aggregateID))
	if err != nil {
		if err == repository.ErrKeyNotFound {
			// Primary has not arrived; the counter above persists so the
			// primary can detect completion on arrival
			t.logger.Info("Dependent sub-event arrived before primary",
				zap.String("aggregate_id", aggregateID),
				zap.Int64("received", received))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read expected count: %w", err)
	}

	expected, err := strconv.ParseInt(expectedRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt expected count for aggregate %s: %w", aggregateID, err)
	}

	if received >= expected {
		return t.tryComplete(ctx, aggregateID)
	}

	return nil, nil
}

// Sweep claims aggregates whose deadline has passed and returns them for
// alerting. Each expired aggregate is returned exactly once even with
// concurrent sweepers: the deadline-index removal is the claim.
func (t *CorrelationTracker) Sweep(ctx context.Context, now time.Time) ([]ExpiredAggregate, error) {
	due, err := t.store.DueMembers(ctx, correlationDeadlineIndex, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due correlations: %w", err)
	}

	var expired []ExpiredAggregate
	for _, aggregateID := range due {
		claimed, err := t.store.RemoveDeadline(ctx, correlationDeadlineIndex, aggregateID)
		if err != nil {
			return expired, fmt.Errorf("failed to claim expired correlation: %w", err)
		}
		if !claimed {
			continue
		}

		payload, err := t.store.GetDel(ctx, t.payloadKey(aggregateID))
		if err != nil {
			if err == repository.ErrKeyNotFound {
				// Completed between deadline listing and the claim
				continue
			}
			return expired, fmt.Errorf("failed to take expired payload: %w", err)
		}

		received, _ := t.receivedCount(ctx, aggregateID)
		var expectedCount int64
		if raw, err := t.store.Get(ctx, t.expectedKey(aggregateID)); err == nil {
			expectedCount, _ = strconv.ParseInt(raw, 10, 64)
		}

		var event entity.NormalizedEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.logger.Error("Corrupt payload on expired correlation",
				zap.String("aggregate_id", aggregateID),
				zap.Error(err))
		}

		if err := t.store.Delete(ctx, t.expectedKey(aggregateID), t.receivedKey(aggregateID)); err != nil {
			t.logger.Error("Failed to clear expired correlation state",
				zap.String("aggregate_id", aggregateID),
				zap.Error(err))
		}

		expired = append(expired, ExpiredAggregate{
			AggregateID: aggregateID,
			Received:    received,
			Expected:    expectedCount,
			Event:       &event,
		})

		t.logger.Warn("Correlation expired with missing sub-events",
			zap.String("aggregate_id", aggregateID),
			zap.Int64("received", received),
			zap.Int64("expected", expectedCount))
	}

	return expired, nil
}

// tryComplete atomically consumes the stored primary payload. The GetDel
// is the claim: exactly one of any concurrent completers observes the
// payload, so the combined event is emitted once. The deadline entry is
// unindexed first so a sweeper that finds the payload gone knows the
// aggregate completed rather than expired.
func (t *CorrelationTracker) tryComplete(ctx context.Context, aggregateID string) (*entity.NormalizedEvent, error) {
	if _, err := t.store.RemoveDeadline(ctx, correlationDeadlineIndex, aggregateID); err != nil {
		t.logger.Error("Failed to unindex correlation deadline",
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
	}

	payload, err := t.store.GetDel(ctx, t.payloadKey(aggregateID))
	if err != nil {
		if err == repository.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to take primary payload: %w", err)
	}

	if err := t.store.Delete(ctx, t.expectedKey(aggregateID), t.receivedKey(aggregateID)); err != nil {
		t.logger.Error("Failed to clear correlation state",
			zap.String("aggregate_id", aggregateID),
			zap.Error(err))
	}

	var event entity.NormalizedEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("corrupt primary payload for aggregate %s: %w", aggregateID, err)
	}

	t.logger.Info("Correlation complete",
		zap.String("aggregate_id", aggregateID),
		zap.String("kind", string(event.Kind)))

	return &event, nil
}

// retention is the store TTL on correlation state keys. It outlives the
// deadline on purpose: the sweeper's deadline-index claim decides when an
// aggregate expires, and the keys must still be readable at that point.
// The store TTL only reclaims state nobody swept.
func (t *CorrelationTracker) retention() time.Duration {
	return 2 * t.ttl
}

func (t *CorrelationTracker) receivedCount(ctx context.Context, aggregateID string) (int64, error) {
	raw, err := t.store.Get(ctx, t.receivedKey(aggregateID))
	if err != nil {
		if err == repository.ErrKeyNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read received count: %w", err)
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt received count for aggregate %s: %w", aggregateID, err)
	}
	return count, nil
}

func (t *CorrelationTracker) payloadKey(aggregateID string) string {
	return "corr:" + aggregateID + ":payload"
}

func (t *CorrelationTracker) expectedKey(aggregateID string) string {
	return "corr:" + aggregateID + ":expected"
}

func (t *CorrelationTracker) receivedKey(aggregateID string) string {
	return "corr:" + aggregateID + ":received"
}
