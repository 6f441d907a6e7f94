package publish

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arlobright/signalbox/internal/models"
	"github.com/arlobright/signalbox/internal/snapshot"
)

func targetIn(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "agents.json")
}

func TestWriteAtomic_CreatesFile(t *testing.T) {
	target := targetIn(t)
	changed, err := WriteAtomic([]byte("v1\n"), target)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !changed {
		t.Error("changed = false for initial write")
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "v1\n" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteAtomic_UnchangedContent(t *testing.T) {
	target := targetIn(t)
	if _, err := WriteAtomic([]byte("same\n"), target); err != nil {
		t.Fatalf("first write: %v", err)
	}
	changed, err := WriteAtomic([]byte("same\n"), target)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if changed {
		t.Error("changed = true for identical content")
	}
}

func TestWriteAtomic_Overwrites(t *testing.T) {
	target := targetIn(t)
	WriteAtomic([]byte("v1\n"), target)
	changed, err := WriteAtomic([]byte("v2\n"), target)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !changed {
		t.Error("changed = false for new content")
	}
	got, _ := os.ReadFile(target)
	if string(got) != "v2\n" {
		t.Errorf("content = %q, want v2", got)
	}
}

func TestWriteAtomic_NoTempLeftBehind(t *testing.T) {
	target := targetIn(t)
	WriteAtomic([]byte("v1\n"), target)
	WriteAtomic([]byte("v2\n"), target)

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

// Failure before rename must leave the prior version authoritative.
func TestWriteAtomic_FailureLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "agents.json")
	if _, err := WriteAtomic([]byte("v1\n"), target); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Unwritable directory forces the temp-file create to fail.
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	_, err := WriteAtomic([]byte("v2\n"), target)
	if err == nil {
		t.Fatal("expected error writing into read-only dir")
	}
	os.Chmod(dir, 0755)
	got, readErr := os.ReadFile(target)
	if readErr != nil {
		t.Fatalf("read back: %v", readErr)
	}
	if string(got) != "v1\n" {
		t.Errorf("content = %q, want prior v1 after failed publish", got)
	}
}

func TestPublish_Document(t *testing.T) {
	target := targetIn(t)
	doc := snapshot.Build([]models.AgentConfig{{Name: "scout", Model: "m3"}}, nil)

	changed, err := Publish(doc, target)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !changed {
		t.Error("changed = false for first publish")
	}

	// Same document again: byte-identical, so no change reported.
	changed, err = Publish(doc, target)
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if changed {
		t.Error("changed = true for identical document")
	}

	want, _ := doc.Encode()
	got, _ := os.ReadFile(target)
	if !bytes.Equal(got, want) {
		t.Errorf("file content differs from encoded document")
	}
}
