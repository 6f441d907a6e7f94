// Package db owns store connections, schema migration, and the
// database-side change notifier.
package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported store drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// EventChannel is the notification channel watched tables signal on.
// Postgres delivers it via LISTEN/NOTIFY; other drivers fall back to the
// polling change stream.
const EventChannel = "signalbox_events"

// Options describes a store connection. Path is only used by sqlite.
type Options struct {
	Driver   string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Path     string
}

// DSN renders the driver-specific connection string.
func (o Options) DSN() string {
	switch o.Driver {
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable",
			o.Host, o.Port, o.User, o.Database)
		if o.Password != "" {
			dsn += " password=" + o.Password
		}
		return dsn
	case DriverMySQL:
		return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true",
			o.User, o.Host, o.Port, o.Database)
	case DriverSQLite:
		return o.Path
	default:
		return ""
	}
}

// Connect opens a GORM connection for the given options. The connection
// is a pooled query/write handle; the change-stream subscription uses its
// own dedicated connection (see internal/listen).
func Connect(opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var dial gorm.Dialector
	switch opts.Driver {
	case DriverPostgres:
		dial = postgres.Open(opts.DSN())
	case DriverMySQL:
		dial = mysql.Open(opts.DSN())
	case DriverSQLite:
		dial = sqlite.Open(opts.DSN())
	default:
		return nil, fmt.Errorf("db: unknown driver %q", opts.Driver)
	}

	gdb, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, fmt.Errorf("db: connect %s (%s): %w", opts.Driver, opts.Database, err)
	}
	return gdb, nil
}

// Ping verifies the connection is alive.
func Ping(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db: ping: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("db: ping: %w", err)
	}
	return nil
}
