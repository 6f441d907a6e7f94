package messaging

import "testing"

func TestCursor_DefaultsToZero(t *testing.T) {
	l := New(openTestDB(t), nil)
	got, err := l.Cursor("newhart")
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if got != 0 {
		t.Errorf("cursor = %d, want 0 for unseen agent", got)
	}
}

func TestSetCursor_Upserts(t *testing.T) {
	l := New(openTestDB(t), nil)
	if err := l.SetCursor("newhart", 7); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	if err := l.SetCursor("newhart", 12); err != nil {
		t.Fatalf("set cursor again: %v", err)
	}
	got, err := l.Cursor("newhart")
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if got != 12 {
		t.Errorf("cursor = %d, want 12", got)
	}

	// Per-agent isolation.
	other, err := l.Cursor("coder")
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if other != 0 {
		t.Errorf("coder cursor = %d, want 0", other)
	}
}
