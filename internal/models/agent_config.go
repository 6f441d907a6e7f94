package models

import "time"

// AgentConfig holds one agent's deployment parameters. Name is unique
// case-insensitively: writes go through a lowercasing upsert, so the
// column carries the canonical (lowercase) form.
type AgentConfig struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Name           string `gorm:"size:64;not null;uniqueIndex"`
	Model          string `gorm:"size:128;not null"`
	FallbackModels string `gorm:"type:json"` // JSON array of model IDs
	ReasoningDepth string `gorm:"size:16"`   // applied at spawn time, never published
	InstanceClass  string `gorm:"size:32"`
	Subagents      string `gorm:"type:json"` // JSON array of agent names
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
