package models

import "time"

// ListenerCursor persists a recipient listener's last-seen message ID so
// restarts resume from where the previous run stopped.
type ListenerCursor struct {
	AgentID   string `gorm:"primaryKey;size:64"`
	LastSeen  uint   `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
