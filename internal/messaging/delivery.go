package messaging

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/arlobright/signalbox/internal/db"
	"github.com/arlobright/signalbox/internal/fault"
	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MarkReceived records that recipient has observed messageID. Idempotent:
// if a delivery record already exists in any state, this is a no-op.
func (l *Log) MarkReceived(messageID uint, recipient string) error {
	if recipient == "" {
		return fmt.Errorf("messaging: recipient is required: %w", fault.ErrValidation)
	}
	var n int64
	if err := l.DB.Model(&models.Message{}).Where("id = ?", messageID).Count(&n).Error; err != nil {
		return fmt.Errorf("messaging: check message %d: %w", messageID, err)
	}
	if n == 0 {
		return fmt.Errorf("messaging: message %d does not exist: %w", messageID, fault.ErrValidation)
	}

	rec := models.DeliveryRecord{
		MessageID:  messageID,
		AgentID:    recipient,
		State:      models.DeliveryReceived,
		ReceivedAt: time.Now(),
	}
	err := l.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("messaging: mark received %d/%s: %w", messageID, recipient, err)
	}
	return nil
}

// MarkRouted transitions received → routed. The update is guarded on the
// current state, so concurrent markers race safely: the loser's update
// matches zero rows and surfaces InvalidStateTransition. Do not retry
// blindly; re-read the record first.
func (l *Log) MarkRouted(messageID uint, recipient string) error {
	now := time.Now()
	res := l.DB.Model(&models.DeliveryRecord{}).
		Where("message_id = ? AND agent_id = ? AND state = ?",
			messageID, recipient, models.DeliveryReceived).
		Updates(map[string]interface{}{"state": models.DeliveryRouted, "routed_at": now})
	if res.Error != nil {
		return fmt.Errorf("messaging: mark routed %d/%s: %w", messageID, recipient, db.Classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return l.transitionError("routed", messageID, recipient)
	}
	return nil
}

// MarkResponded transitions routed → responded. If the message
// originated a job owned by recipient, the job is completed as a side
// effect (which in turn fans out its notify-list messages).
func (l *Log) MarkResponded(messageID uint, recipient string) error {
	now := time.Now()
	res := l.DB.Model(&models.DeliveryRecord{}).
		Where("message_id = ? AND agent_id = ? AND state = ?",
			messageID, recipient, models.DeliveryRouted).
		Updates(map[string]interface{}{"state": models.DeliveryResponded, "responded_at": now})
	if res.Error != nil {
		return fmt.Errorf("messaging: mark responded %d/%s: %w", messageID, recipient, db.Classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return l.transitionError("responded", messageID, recipient)
	}

	if l.OnResponded != nil {
		if err := l.OnResponded(messageID, recipient); err != nil {
			// The delivery transition already committed; the hook is a
			// follow-on effect, logged rather than unwound.
			log.Printf("messaging: responded hook %d/%s: %v", messageID, recipient, err)
		}
	}
	return nil
}

// MarkFailed transitions any non-terminal state to failed, recording the
// error detail. Terminal records are never overwritten.
func (l *Log) MarkFailed(messageID uint, recipient, errorDetail string) error {
	now := time.Now()
	res := l.DB.Model(&models.DeliveryRecord{}).
		Where("message_id = ? AND agent_id = ? AND state IN ?",
			messageID, recipient, []string{models.DeliveryReceived, models.DeliveryRouted}).
		Updates(map[string]interface{}{
			"state":        models.DeliveryFailed,
			"error_detail": errorDetail,
			"failed_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("messaging: mark failed %d/%s: %w", messageID, recipient, db.Classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return l.transitionError("failed", messageID, recipient)
	}
	return nil
}

// Delivery returns the delivery record for a (message, recipient) pair.
func (l *Log) Delivery(messageID uint, recipient string) (*models.DeliveryRecord, error) {
	var rec models.DeliveryRecord
	err := l.DB.Where("message_id = ? AND agent_id = ?", messageID, recipient).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("messaging: delivery %d/%s: %w", messageID, recipient, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("messaging: delivery %d/%s: %w", messageID, recipient, err)
	}
	return &rec, nil
}

// transitionError builds the InvalidStateTransition error for a guarded
// update that matched no rows, naming the actual state when the record
// exists.
func (l *Log) transitionError(target string, messageID uint, recipient string) error {
	rec, err := l.Delivery(messageID, recipient)
	if err != nil {
		return fmt.Errorf("messaging: no delivery record for %d/%s: %w",
			messageID, recipient, fault.ErrInvalidTransition)
	}
	return fmt.Errorf("messaging: cannot mark %d/%s %s from state %s: %w",
		messageID, recipient, target, rec.State, fault.ErrInvalidTransition)
}
