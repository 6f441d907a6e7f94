package identity

import (
	"errors"
	"testing"

	"github.com/arlobright/signalbox/internal/fault"
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
	if err := gdb.AutoMigrate(&models.AgentConfig{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

func TestCanonical(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Newhart", "newhart"},
		{"  MCP ", "mcp"},
		{"coder", "coder"},
	}
	for _, c := range cases {
		if got := Canonical(c.in); got != c.want {
			t.Errorf("Canonical(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStoreResolver_CaseInsensitive(t *testing.T) {
	gdb := openTestDB(t)
	gdb.Create(&models.AgentConfig{Name: "newhart", Model: "m1"})

	r := &StoreResolver{DB: gdb}
	got, err := r.Resolve("NewHart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "newhart" {
		t.Errorf("Resolve = %q, want %q", got, "newhart")
	}
}

func TestStoreResolver_NotFound(t *testing.T) {
	r := &StoreResolver{DB: openTestDB(t)}
	_, err := r.Resolve("ghost")
	if !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("error = %v, want fault.ErrNotFound", err)
	}
}

func TestStoreResolver_EmptyName(t *testing.T) {
	r := &StoreResolver{DB: openTestDB(t)}
	_, err := r.Resolve("")
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("error = %v, want fault.ErrValidation", err)
	}
}
