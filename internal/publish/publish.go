// Package publish writes the configuration document to its consumer
// path without ever exposing a partial file.
package publish

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arlobright/signalbox/internal/snapshot"
)

// Publish serializes doc and atomically replaces targetPath with it.
// Returns whether the content actually changed, so callers can suppress
// redundant reload signals. Any failure before the rename leaves
// targetPath untouched.
func Publish(doc *snapshot.Document, targetPath string) (bool, error) {
	data, err := doc.Encode()
	if err != nil {
		return false, fmt.Errorf("publish: %w", err)
	}
	return WriteAtomic(data, targetPath)
}

// WriteAtomic writes data to targetPath via a uniquely named temp file
// in the same directory followed by a rename. The temp file must live on
// the same filesystem as the target or the rename loses atomicity.
func WriteAtomic(data []byte, targetPath string) (bool, error) {
	prior, err := os.ReadFile(targetPath)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("publish: read prior %s: %w", targetPath, err)
	}
	if err == nil && bytes.Equal(prior, data) {
		return false, nil
	}

	dir := filepath.Dir(targetPath)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(targetPath)+".tmp-*")
	if err != nil {
		return false, fmt.Errorf("publish: create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName) // best effort
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return false, fmt.Errorf("publish: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return false, fmt.Errorf("publish: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("publish: close temp: %w", err)
	}

	if err := os.Rename(tmpName, targetPath); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("publish: rename onto %s: %w", targetPath, err)
	}
	return true, nil
}
