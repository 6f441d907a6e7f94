package dashboard

import (
	"encoding/json"
	"time"

	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/gorm"
)

// AgentRow holds agent config data for display.
type AgentRow struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Model          string    `json:"model"`
	FallbackModels []string  `json:"fallback_models,omitempty"`
	ReasoningDepth string    `json:"reasoning_depth,omitempty"`
	Subagents      []string  `json:"subagents,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AgentList returns all agent configs ordered by name.
func AgentList(db *gorm.DB) ([]AgentRow, error) {
	var agents []models.AgentConfig
	if err := db.Order("name ASC").Find(&agents).Error; err != nil {
		return nil, err
	}
	rows := make([]AgentRow, len(agents))
	for i, a := range agents {
		rows[i] = AgentRow{
			ID:             a.ID,
			Name:           a.Name,
			Model:          a.Model,
			FallbackModels: decodeStringList(a.FallbackModels),
			ReasoningDepth: a.ReasoningDepth,
			Subagents:      decodeStringList(a.Subagents),
			UpdatedAt:      a.UpdatedAt,
		}
	}
	return rows, nil
}

// DefaultRow holds a system default for display.
type DefaultRow struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ValueType string    `json:"value_type"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultList returns all system defaults ordered by key.
func DefaultList(db *gorm.DB) ([]DefaultRow, error) {
	var defaults []models.SystemDefault
	if err := db.Order("key ASC").Find(&defaults).Error; err != nil {
		return nil, err
	}
	rows := make([]DefaultRow, len(defaults))
	for i, d := range defaults {
		rows[i] = DefaultRow{
			Key:       d.Key,
			Value:     d.Value,
			ValueType: d.ValueType,
			UpdatedAt: d.UpdatedAt,
		}
	}
	return rows, nil
}

// JobRow holds job data for display.
type JobRow struct {
	ID             uint       `json:"id"`
	OwnerAgent     string     `json:"owner_agent"`
	RequesterAgent string     `json:"requester_agent,omitempty"`
	Status         string     `json:"status"`
	Priority       int        `json:"priority"`
	Summary        string     `json:"summary,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// JobFilters holds optional filters for the job list.
type JobFilters struct {
	Owner  string
	Status string
}

// JobList returns jobs matching filters, live jobs first by priority.
func JobList(db *gorm.DB, filters JobFilters) ([]JobRow, error) {
	q := db.Model(&models.Job{})
	if filters.Owner != "" {
		q = q.Where("owner_agent = ?", filters.Owner)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}

	var jobs []models.Job
	if err := q.Order("priority DESC, created_at ASC").Limit(200).Find(&jobs).Error; err != nil {
		return nil, err
	}
	rows := make([]JobRow, len(jobs))
	for i, j := range jobs {
		rows[i] = JobRow{
			ID:             j.ID,
			OwnerAgent:     j.OwnerAgent,
			RequesterAgent: j.RequesterAgent,
			Status:         j.Status,
			Priority:       j.Priority,
			Summary:        j.Summary,
			CreatedAt:      j.CreatedAt,
			StartedAt:      j.StartedAt,
			CompletedAt:    j.CompletedAt,
		}
	}
	return rows, nil
}

// MessageRow holds a message plus its per-recipient delivery states.
type MessageRow struct {
	ID         uint              `json:"id"`
	FromAgent  string            `json:"from_agent"`
	Body       string            `json:"body"`
	ParentID   *uint             `json:"parent_id,omitempty"`
	Deliveries map[string]string `json:"deliveries"`
	CreatedAt  time.Time         `json:"created_at"`
}

// MessageList returns recent messages newest first, with delivery state
// per recipient. Recipients with no delivery record yet show as "pending".
func MessageList(db *gorm.DB, agent string, limit int) ([]MessageRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := db.Model(&models.Message{}).Preload("Recipients")
	if agent != "" {
		q = q.Where("from_agent = ? OR id IN (?)", agent,
			db.Model(&models.MessageRecipient{}).Select("message_id").Where("agent_id = ?", agent))
	}
	var msgs []models.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	rows := make([]MessageRow, len(msgs))
	for i, m := range msgs {
		row := MessageRow{
			ID:         m.ID,
			FromAgent:  m.FromAgent,
			Body:       m.Body,
			ParentID:   m.ParentID,
			Deliveries: make(map[string]string, len(m.Recipients)),
			CreatedAt:  m.CreatedAt,
		}
		for _, r := range m.Recipients {
			row.Deliveries[r.AgentID] = "pending"
		}
		var recs []models.DeliveryRecord
		if err := db.Where("message_id = ?", m.ID).Find(&recs).Error; err != nil {
			return nil, err
		}
		for _, rec := range recs {
			row.Deliveries[rec.AgentID] = rec.State
		}
		rows[i] = row
	}
	return rows, nil
}

// QueueDepth returns the count of recipient slots that have not reached
// a terminal delivery state.
func QueueDepth(db *gorm.DB) (int64, error) {
	var total int64
	if err := db.Model(&models.MessageRecipient{}).Count(&total).Error; err != nil {
		return 0, err
	}
	var settled int64
	if err := db.Model(&models.DeliveryRecord{}).
		Where("state IN ?", []string{models.DeliveryResponded, models.DeliveryFailed}).
		Count(&settled).Error; err != nil {
		return 0, err
	}
	return total - settled, nil
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var vals []string
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return nil
	}
	return vals
}
