package messaging

import (
	"errors"
	"fmt"
	"time"

	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cursor returns the recipient listener's persisted last-seen message
// id, or 0 if none has been stored yet.
func (l *Log) Cursor(agent string) (uint, error) {
	var row models.ListenerCursor
	err := l.DB.Where("agent_id = ?", agent).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("messaging: cursor for %s: %w", agent, err)
	}
	return row.LastSeen, nil
}

// SetCursor advances the persisted cursor. Moving it backward is
// allowed (an operator resetting a listener) but unusual.
func (l *Log) SetCursor(agent string, lastSeen uint) error {
	row := models.ListenerCursor{
		AgentID:   agent,
		LastSeen:  lastSeen,
		UpdatedAt: time.Now(),
	}
	err := l.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("messaging: set cursor for %s: %w", agent, err)
	}
	return nil
}
