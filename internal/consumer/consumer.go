package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/arlobright/signalbox/internal/fault"
	"github.com/arlobright/signalbox/internal/snapshot"
	"github.com/fsnotify/fsnotify"
)

// Watcher loads the published configuration document and keeps it
// current as the publisher replaces the file. Because publishes are
// rename-based, the watcher observes the parent directory rather than
// the file itself; a watch on the old inode would go stale after the
// first swap.
type Watcher struct {
	Path string

	// OnReload, if set, runs after each successful reload with the new
	// document. It runs on the watch goroutine; keep it quick.
	OnReload func(doc *snapshot.Document)

	mu  sync.RWMutex
	doc *snapshot.Document
}

func NewWatcher(path string) *Watcher {
	return &Watcher{Path: path}
}

// Load reads and decodes the document at Path, replacing the current
// one. A missing file is reported as fault.ErrNotFound so callers can
// distinguish "publisher has not run yet" from a corrupt document.
func (w *Watcher) Load() error {
	data, err := os.ReadFile(w.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("consumer: %s: %w", w.Path, fault.ErrNotFound)
		}
		return fmt.Errorf("consumer: read %s: %w", w.Path, err)
	}
	var doc snapshot.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("consumer: decode %s: %w", w.Path, err)
	}
	w.mu.Lock()
	w.doc = &doc
	w.mu.Unlock()
	if w.OnReload != nil {
		w.OnReload(&doc)
	}
	return nil
}

// Current returns the most recently loaded document, or nil if no load
// has succeeded yet.
func (w *Watcher) Current() *snapshot.Document {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.doc
}

// Run loads the document once, then reloads on every create, write, or
// rename event for it until ctx is cancelled. The initial load may fail
// with fault.ErrNotFound when the publisher has not produced a document
// yet; the watcher stays up and picks it up on the create event.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("consumer: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.Path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("consumer: watch %s: %w", dir, err)
	}

	if err := w.Load(); err != nil {
		log.Printf("consumer: initial load: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.Path) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Load(); err != nil {
				log.Printf("consumer: reload: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("consumer: watch: %v", err)
		}
	}
}
