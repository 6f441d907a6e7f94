package reconcile

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/arlobright/signalbox/internal/models"
	"github.com/arlobright/signalbox/internal/publish"
	"github.com/arlobright/signalbox/internal/snapshot"
	"gorm.io/gorm"
)

// NewRebuildCycle returns the config-sync cycle: query current rows,
// build the document, publish atomically, and signal the consumer when
// content changed. sig may be nil (no reload signaling configured).
func NewRebuildCycle(gdb *gorm.DB, targetPath string, sig Signaler, out io.Writer) func(context.Context) error {
	return func(ctx context.Context) error {
		var agents []models.AgentConfig
		if err := gdb.WithContext(ctx).Order("name ASC").Find(&agents).Error; err != nil {
			return fmt.Errorf("reconcile: load agent configs: %w", err)
		}
		var defaults []models.SystemDefault
		if err := gdb.WithContext(ctx).Order("key ASC").Find(&defaults).Error; err != nil {
			return fmt.Errorf("reconcile: load system defaults: %w", err)
		}

		doc := snapshot.Build(agents, defaults)
		changed, err := publish.Publish(doc, targetPath)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		if !changed {
			return nil
		}

		if out != nil {
			fmt.Fprintf(out, "published %s (%d agents, %d models)\n",
				targetPath, len(doc.Agents), len(doc.Models))
		}
		if sig != nil {
			// Reload failures don't fail the cycle: the document on disk
			// is already correct and the consumer may simply not be up.
			if err := sig.Signal(); err != nil {
				log.Printf("reconcile: reload signal: %v", err)
			}
		}
		return nil
	}
}
