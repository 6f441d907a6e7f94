package models

import "time"

// Delivery states. Transitions only move forward: received → routed →
// responded, or any non-terminal state → failed.
const (
	DeliveryReceived  = "received"
	DeliveryRouted    = "routed"
	DeliveryResponded = "responded"
	DeliveryFailed    = "failed"
)

// DeliveryRecord tracks one (message, recipient) pair's processing
// state. The composite primary key enforces at most one record per pair.
type DeliveryRecord struct {
	MessageID   uint   `gorm:"primaryKey"`
	AgentID     string `gorm:"primaryKey;size:64"`
	State       string `gorm:"size:16;not null;default:received;index"`
	ErrorDetail string `gorm:"type:text"`
	ReceivedAt  time.Time
	RoutedAt    *time.Time
	RespondedAt *time.Time
	FailedAt    *time.Time
}

// Terminal reports whether the record has reached a final state.
func (d *DeliveryRecord) Terminal() bool {
	return d.State == DeliveryResponded || d.State == DeliveryFailed
}
