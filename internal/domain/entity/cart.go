package entity

// RecurrenceInterval is the billing interval of a subscription cart line
type RecurrenceInterval string

const (
	IntervalMonth RecurrenceInterval = "month"
	IntervalYear  RecurrenceInterval = "year"
)

// Recurrence describes the billing cadence of a subscription line.
// Absent (nil) for single-purchase lines.
type Recurrence struct {
	Interval RecurrenceInterval `json:"interval" validate:"required,oneof=month year"`
	Count    int                `json:"count" validate:"min=1"`
}

// CartLine is one entry of a customer's cart. UnitAmount is in minor
// currency units (cents).
type CartLine struct {
	ProductID  string      `json:"product_id" validate:"required"`
	PriceID    string      `json:"price_id" validate:"required"`
	Name       string      `json:"name"`
	UnitAmount int64       `json:"unit_amount" validate:"min=1"`
	Quantity   int         `json:"quantity" validate:"min=1,max=100"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

// IsSubscription reports whether the line bills on a recurring schedule
func (l *CartLine) IsSubscription() bool {
	return l.Recurrence != nil
}

// Cart is the ordered set of lines a customer is checking out. The client
// mutates it freely; the server validates it before any money math.
type Cart struct {
	OwnerID string     `json:"owner_id" validate:"required"`
	Email   string     `json:"email" validate:"required,email"`
	GiftFor string     `json:"gift_for,omitempty"`
	Lines   []CartLine `json:"lines" validate:"required,min=1,dive"`
}

// HasSubscription reports whether any line is a subscription line
func (c *Cart) HasSubscription() bool {
	for i := range c.Lines {
		if c.Lines[i].IsSubscription() {
			return true
		}
	}
	return false
}

// SubscriptionLine returns the single subscription line, if present
func (c *Cart) SubscriptionLine() *CartLine {
	for i := range c.Lines {
		if c.Lines[i].IsSubscription() {
			return &c.Lines[i]
		}
	}
	return nil
}
