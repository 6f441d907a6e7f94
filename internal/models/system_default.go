package models

import "time"

// Value type tags for SystemDefault rows.
const (
	ValueInteger = "integer"
	ValueBoolean = "boolean"
	ValueString  = "string"
)

// SystemDefault is a single typed key/value pair applying to all agents.
type SystemDefault struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:text;not null"`
	ValueType string `gorm:"size:16;not null;default:string"`
	UpdatedAt time.Time
}
