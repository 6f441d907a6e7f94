package models

import "time"

// Message is one inter-agent communication. Rows are immutable once
// created; the recipient set lives in MessageRecipient rows.
type Message struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	FromAgent string `gorm:"size:64;not null;index"`
	Body      string `gorm:"type:text;not null"`
	ParentID  *uint
	CreatedAt time.Time

	Recipients []MessageRecipient `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

// MessageRecipient addresses a message to one agent. Duplicate rows for
// the same (message, agent) pair are allowed but meaningless; addressing
// is exact-match on AgentID.
type MessageRecipient struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MessageID uint   `gorm:"not null;index:idx_msg_recipient"`
	AgentID   string `gorm:"size:64;not null;index:idx_msg_recipient"`
}
