package models

import "time"

// Job statuses. Allowed transitions: pending → in_progress →
// {completed|failed}, or pending → cancelled.
const (
	JobPending    = "pending"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobFailed     = "failed"
	JobCancelled  = "cancelled"
)

// Job tracks delegated work, optionally derived from a Message.
// ParentJobID forms a tree; it is fixed at creation, so cycles cannot
// arise.
type Job struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	OriginMessageID *uint  `gorm:"index"`
	OwnerAgent      string `gorm:"size:64;not null;index"`
	RequesterAgent  string `gorm:"size:64"`
	ParentJobID     *uint
	Status          string `gorm:"size:16;not null;default:pending;index"`
	Priority        int    `gorm:"default:5"`
	NotifyList      string `gorm:"type:json"` // JSON array of agent IDs
	Deliverable     string `gorm:"type:text"`
	Summary         string `gorm:"type:text"`
	ErrorDetail     string `gorm:"type:text"`
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time

	Parent   *Job  `gorm:"foreignKey:ParentJobID"`
	Children []Job `gorm:"foreignKey:ParentJobID"`
}

// JobTerminal reports whether a status permits no further transitions.
func JobTerminal(status string) bool {
	return status == JobCompleted || status == JobFailed || status == JobCancelled
}
