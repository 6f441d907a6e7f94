package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/arlobright/signalbox/internal/config"
	"github.com/arlobright/signalbox/internal/db"
	"github.com/arlobright/signalbox/internal/listen"
	"github.com/arlobright/signalbox/internal/messaging"
	"gorm.io/gorm"
)

// connectFromConfig loads the config file and opens the store.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	gdb, err := db.Connect(storeOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, gdb, nil
}

func storeOptions(cfg *config.Config) db.Options {
	return db.Options{
		Driver:   cfg.Store.Driver,
		Host:     cfg.Store.Host,
		Port:     cfg.Store.Port,
		Database: cfg.Store.Database,
		User:     cfg.Store.User,
		Password: cfg.Store.Password,
		Path:     cfg.Store.Path,
	}
}

// newMessageLog builds the message log with the driver-appropriate
// announcer: NOTIFY on postgres, none elsewhere (pollers see the rows).
func newMessageLog(cfg *config.Config, gdb *gorm.DB) *messaging.Log {
	var announcer messaging.Announcer
	if cfg.Store.Driver == db.DriverPostgres {
		announcer = &messaging.PGAnnouncer{DB: gdb}
	}
	return messaging.New(gdb, announcer)
}

// newStream builds the driver-appropriate change stream: LISTEN/NOTIFY
// on postgres, fingerprint polling elsewhere.
func newStream(cfg *config.Config, gdb *gorm.DB) listen.Stream {
	if cfg.Store.Driver == db.DriverPostgres {
		return listen.NewPGStream(storeOptions(cfg))
	}
	return listen.NewPollStream(gdb, cfg.Reconcile.PollInterval)
}

func parseID(arg, what string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s ID %q", what, arg)
	}
	return uint(id), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
