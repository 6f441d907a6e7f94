package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/arlobright/signalbox/internal/db"
	"gorm.io/gorm"
)

// Announcer emits the change event for a freshly submitted message. The
// event is a non-durable signal: listeners that are disconnected when it
// fires recover by re-reading the log, never by redelivery.
type Announcer interface {
	AnnounceMessage(messageID uint, from string, recipients []string) error
}

// messageEvent is the notification payload for a new message. Payloads
// are advisory; recipients re-query the log before acting.
type messageEvent struct {
	Table      string   `json:"table"`
	ID         uint     `json:"id"`
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
}

// PGAnnouncer emits events over Postgres NOTIFY using the pooled handle.
type PGAnnouncer struct {
	DB *gorm.DB
}

func (a *PGAnnouncer) AnnounceMessage(messageID uint, from string, recipients []string) error {
	payload, err := json.Marshal(messageEvent{
		Table:      "messages",
		ID:         messageID,
		From:       from,
		Recipients: recipients,
	})
	if err != nil {
		return fmt.Errorf("messaging: marshal event: %w", err)
	}
	if err := a.DB.Exec("SELECT pg_notify(?, ?)", db.EventChannel, string(payload)).Error; err != nil {
		return fmt.Errorf("messaging: pg_notify: %w", err)
	}
	return nil
}
