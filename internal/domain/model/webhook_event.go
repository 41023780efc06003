package model

import (
	"database/sql/driver"
	"time"
)

// WebhookStatus represents the processing status of a webhook
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusCompleted WebhookStatus = "completed"
	WebhookStatusIgnored   WebhookStatus = "ignored"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// Scan implements sql.Scanner interface
func (w *WebhookStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookStatus(v)
	case []byte:
		*w = WebhookStatus(v)
	default:
		*w = WebhookStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// WebhookEvent is the durable audit row for every received delivery,
// alongside the short-lived dedup key in the keyed store
type WebhookEvent struct {
	ID          int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Gateway     string        `gorm:"not null;size:16;index" json:"gateway"`
	EventID     string        `gorm:"unique;not null;size:255;index" json:"event_id"`
	EventType   string        `gorm:"not null;size:100;index" json:"event_type"`
	Status      WebhookStatus `gorm:"size:20;default:'pending';index" json:"status"`
	Data        JSONB         `gorm:"type:jsonb" json:"data"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	LastError   *string       `json:"last_error,omitempty"`
	CreatedAt   time.Time     `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
