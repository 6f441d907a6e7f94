// Package messaging implements the durable message log and the
// per-recipient delivery tracker.
package messaging

import (
	"fmt"
	"log"
	"time"

	"github.com/arlobright/signalbox/internal/db"
	"github.com/arlobright/signalbox/internal/fault"
	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/gorm"
)

// Log is the message-log handle. It owns no connection of its own; the
// pooled DB handle is constructed once and passed down (no package
// globals).
type Log struct {
	DB        *gorm.DB
	Announcer Announcer

	// OnResponded, if set, runs after a successful routed→responded
	// transition. Wiring code points it at the job tracker so a response
	// can complete the job that originated the message.
	OnResponded func(messageID uint, recipient string) error
}

// New creates a Log. announcer may be nil (no change events emitted,
// e.g. sqlite test databases where pollers read the tables directly).
func New(gdb *gorm.DB, announcer Announcer) *Log {
	return &Log{DB: gdb, Announcer: announcer}
}

// Submit appends a new message addressed to recipients and emits a
// change event carrying its id, sender, and recipient set.
//
// Retried submits are not deduplicated: a client that times out and
// resubmits creates a second message. Callers wanting at-most-once
// submission must serialize on their side.
func (l *Log) Submit(from, body string, recipients []string, parentID *uint) (*models.Message, error) {
	if from == "" {
		return nil, fmt.Errorf("messaging: sender is required: %w", fault.ErrValidation)
	}
	if body == "" {
		return nil, fmt.Errorf("messaging: body is required: %w", fault.ErrValidation)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("messaging: at least one recipient is required: %w", fault.ErrValidation)
	}
	for _, r := range recipients {
		if r == "" {
			return nil, fmt.Errorf("messaging: empty recipient: %w", fault.ErrValidation)
		}
	}
	if parentID != nil {
		var n int64
		if err := l.DB.Model(&models.Message{}).Where("id = ?", *parentID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("messaging: check parent %d: %w", *parentID, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("messaging: parent message %d does not exist: %w", *parentID, fault.ErrValidation)
		}
	}

	msg := models.Message{
		FromAgent: from,
		Body:      body,
		ParentID:  parentID,
		CreatedAt: time.Now(),
	}
	err := l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		rows := make([]models.MessageRecipient, 0, len(recipients))
		for _, r := range recipients {
			rows = append(rows, models.MessageRecipient{MessageID: msg.ID, AgentID: r})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: submit: %w", db.Classify(err))
	}

	// Change events are advisory, not durable; a failed announce is
	// logged and the submit still succeeds. Pollers see the row anyway.
	if l.Announcer != nil {
		if err := l.Announcer.AnnounceMessage(msg.ID, from, recipients); err != nil {
			log.Printf("messaging: announce message %d: %v", msg.ID, err)
		}
	}

	return &msg, nil
}

// ListPending returns messages addressed to recipient with id greater
// than sinceID, ascending. Callers persist their own last-seen id and
// pass it back as the cursor.
func (l *Log) ListPending(recipient string, sinceID uint) ([]models.Message, error) {
	if recipient == "" {
		return nil, fmt.Errorf("messaging: recipient is required: %w", fault.ErrValidation)
	}
	var msgs []models.Message
	err := l.DB.Model(&models.Message{}).
		Distinct("messages.*").
		Joins("JOIN message_recipients ON message_recipients.message_id = messages.id").
		Where("message_recipients.agent_id = ? AND messages.id > ?", recipient, sinceID).
		Order("messages.id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("messaging: list pending for %s: %w", recipient, db.Classify(err))
	}
	return msgs, nil
}

// Get returns one message by id.
func (l *Log) Get(messageID uint) (*models.Message, error) {
	var msg models.Message
	err := l.DB.Preload("Recipients").First(&msg, messageID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("messaging: message %d: %w", messageID, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("messaging: get %d: %w", messageID, err)
	}
	return &msg, nil
}
