package listen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arlobright/signalbox/internal/db"
	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/gorm"
)

// PollStream approximates a change stream for backends without
// LISTEN/NOTIFY by fingerprinting the watched tables on an interval. It
// satisfies the same Stream contract: an event means "something
// changed, go look", nothing more.
type PollStream struct {
	db       *gorm.DB
	interval time.Duration

	seeded bool
	prev   fingerprint
}

// fingerprint summarizes the watched tables. Any difference between two
// fingerprints is reported as a change event.
type fingerprint struct {
	MaxMessageID uint
	AgentCount   int64
	AgentStamp   string
	DefaultCount int64
	DefaultStamp string
}

// NewPollStream creates a polling stream over the pooled handle.
func NewPollStream(gdb *gorm.DB, interval time.Duration) *PollStream {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PollStream{db: gdb, interval: interval}
}

// Connect verifies the store is reachable and seeds the fingerprint so
// pre-existing rows do not fire a burst of events. The catch-up cycle
// the reconciler runs after every connect covers them instead.
func (s *PollStream) Connect(ctx context.Context) error {
	if err := db.Ping(s.db.WithContext(ctx)); err != nil {
		return fmt.Errorf("listen: poll connect: %w", err)
	}
	fp, err := s.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("listen: poll connect: %w", err)
	}
	s.prev = fp
	s.seeded = true
	return nil
}

// Wait polls until the fingerprint changes, the context is done, or a
// query fails (treated as connection loss).
func (s *PollStream) Wait(ctx context.Context) (Event, error) {
	if !s.seeded {
		return Event{}, fmt.Errorf("listen: not connected")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-ticker.C:
			fp, err := s.snapshot(ctx)
			if err != nil {
				return Event{}, fmt.Errorf("listen: poll: %w", err)
			}
			if fp == s.prev {
				continue
			}
			changed := changedTables(s.prev, fp)
			s.prev = fp
			payload, _ := json.Marshal(map[string][]string{"tables": changed})
			return Event{Channel: db.EventChannel, Payload: string(payload)}, nil
		}
	}
}

func (s *PollStream) Ping(ctx context.Context) error {
	if err := db.Ping(s.db.WithContext(ctx)); err != nil {
		return fmt.Errorf("listen: poll ping: %w", err)
	}
	return nil
}

func (s *PollStream) Close(ctx context.Context) error {
	s.seeded = false
	return nil
}

func (s *PollStream) snapshot(ctx context.Context) (fingerprint, error) {
	gdb := s.db.WithContext(ctx)
	var fp fingerprint

	if err := gdb.Model(&models.Message{}).
		Select("COALESCE(MAX(id), 0)").Scan(&fp.MaxMessageID).Error; err != nil {
		return fp, err
	}
	if err := gdb.Model(&models.AgentConfig{}).Count(&fp.AgentCount).Error; err != nil {
		return fp, err
	}
	if err := gdb.Model(&models.AgentConfig{}).
		Select("COALESCE(MAX(updated_at), '')").Scan(&fp.AgentStamp).Error; err != nil {
		return fp, err
	}
	if err := gdb.Model(&models.SystemDefault{}).Count(&fp.DefaultCount).Error; err != nil {
		return fp, err
	}
	if err := gdb.Model(&models.SystemDefault{}).
		Select("COALESCE(MAX(updated_at), '')").Scan(&fp.DefaultStamp).Error; err != nil {
		return fp, err
	}
	return fp, nil
}

func changedTables(old, cur fingerprint) []string {
	var tables []string
	if old.MaxMessageID != cur.MaxMessageID {
		tables = append(tables, "messages")
	}
	if old.AgentCount != cur.AgentCount || old.AgentStamp != cur.AgentStamp {
		tables = append(tables, "agent_configs")
	}
	if old.DefaultCount != cur.DefaultCount || old.DefaultStamp != cur.DefaultStamp {
		tables = append(tables, "system_defaults")
	}
	return tables
}
