package reconcile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.Message{},
		&models.MessageRecipient{},
		&models.DeliveryRecord{},
		&models.AgentConfig{},
		&models.SystemDefault{},
		&models.ListenerCursor{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

// countSignaler records reload signals.
type countSignaler struct{ n int }

func (s *countSignaler) Signal() error {
	s.n++
	return nil
}

func TestRebuildCycle_PublishesAndSignals(t *testing.T) {
	gdb := openTestDB(t)
	gdb.Create(&models.AgentConfig{Name: "coder", Model: "m1", FallbackModels: `["m2"]`})
	gdb.Create(&models.SystemDefault{Key: "max_spawn_depth", Value: "9", ValueType: models.ValueInteger})

	target := filepath.Join(t.TempDir(), "agents.json")
	sig := &countSignaler{}
	cycle := NewRebuildCycle(gdb, target, sig, nil)

	if err := cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if sig.n != 1 {
		t.Errorf("signals = %d, want 1", sig.n)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var doc struct {
		Models   []string `json:"models"`
		Settings struct {
			MaxSpawnDepth int `json:"max_spawn_depth"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Models) != 2 {
		t.Errorf("models = %v, want [m1 m2]", doc.Models)
	}
	if doc.Settings.MaxSpawnDepth != 5 {
		t.Errorf("max_spawn_depth = %d, want clamped 5", doc.Settings.MaxSpawnDepth)
	}

	// Nothing changed: no republish signal.
	if err := cycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if sig.n != 1 {
		t.Errorf("signals after no-op cycle = %d, want still 1", sig.n)
	}
}

func TestRebuildCycle_PicksUpRowChanges(t *testing.T) {
	gdb := openTestDB(t)
	target := filepath.Join(t.TempDir(), "agents.json")
	sig := &countSignaler{}
	cycle := NewRebuildCycle(gdb, target, sig, nil)

	if err := cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	gdb.Create(&models.AgentConfig{Name: "scout", Model: "m3"})
	if err := cycle(context.Background()); err != nil {
		t.Fatalf("cycle after insert: %v", err)
	}
	if sig.n != 2 {
		t.Errorf("signals = %d, want 2", sig.n)
	}

	data, _ := os.ReadFile(target)
	var doc struct {
		Agents []struct {
			ID string `json:"id"`
		} `json:"agents"`
	}
	json.Unmarshal(data, &doc)
	if len(doc.Agents) != 1 || doc.Agents[0].ID != "scout" {
		t.Errorf("agents = %+v, want [scout]", doc.Agents)
	}
}

// A write that lands while the reconciler is disconnected must be
// reflected after the reconnect's catch-up cycle even though its change
// event was lost.
func TestReconnectCatchUp_ReflectsMissedWrite(t *testing.T) {
	gdb := openTestDB(t)
	target := filepath.Join(t.TempDir(), "agents.json")

	stream := newFakeStream()
	r := &Reconciler{
		Name:           "config-sync",
		Stream:         stream,
		Cycle:          NewRebuildCycle(gdb, target, nil, nil),
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     40 * time.Millisecond,
		Keepalive:      time.Hour,
	}

	// The write happens before the reconciler ever connects: no event
	// will ever be delivered for it.
	gdb.Create(&models.AgentConfig{Name: "coder", Model: "m1"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		data, err := os.ReadFile(target)
		return err == nil && len(data) > 0
	})

	data, _ := os.ReadFile(target)
	var doc struct {
		Agents []struct {
			ID string `json:"id"`
		} `json:"agents"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Agents) != 1 || doc.Agents[0].ID != "coder" {
		t.Errorf("agents = %+v, want [coder] from catch-up rebuild", doc.Agents)
	}
}
