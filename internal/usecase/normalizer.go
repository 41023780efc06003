package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pagebound/payment-service/internal/domain/entity"
	"github.com/pagebound/payment-service/internal/domain/provider"
)

// CorrelationPart marks an event as one sub-event of a multi-part
// aggregate that the correlation tracker must assemble
type CorrelationPart struct {
	AggregateID string
	Primary     bool
	Expected    int
}

// Normalized is the outcome of mapping one verified gateway event.
// Exactly one of Event and IgnoredReason is set; Correlation accompanies
// Event for multi-part aggregates.
type Normalized struct {
	Event         *entity.NormalizedEvent
	Correlation   *CorrelationPart
	IgnoredReason string
}

// Ignored reports whether the event carries no domain meaning
func (n *Normalized) Ignored() bool {
	return n.Event == nil
}

// Normalizer reduces verified gateway-specific events to the internal
// event schema. Total over each gateway's known event-type set: an
// unknown type maps to an ignored result, never an error, so the webhook
// endpoint can still acknowledge receipt.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new event normalizer
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize maps one verified raw event to the internal schema
func (n *Normalizer) Normalize(gateway entity.Gateway, raw *provider.RawEvent) (*Normalized, error) {
	switch gateway {
	case entity.GatewayStripe:
		return n.normalizeStripe(raw)
	case entity.GatewayPayPal:
		return n.normalizePayPal(raw)
	default:
		return nil, fmt.Errorf("unknown gateway: %s", gateway)
	}
}

func ignored(reason string) *Normalized {
	return &Normalized{IgnoredReason: reason}
}
