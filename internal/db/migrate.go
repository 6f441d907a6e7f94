package db

import (
	"fmt"

	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model for migration, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Message{},
		&models.MessageRecipient{},
		&models.DeliveryRecord{},
		&models.Job{},
		&models.AgentConfig{},
		&models.SystemDefault{},
		&models.ListenerCursor{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// notifyTriggerSQL installs a row-change notifier on the configuration
// tables. The payload is advisory (table name and operation only); every
// consumer re-reads current state, so a dropped notification costs
// freshness, not correctness.
var notifyTriggerSQL = []string{
	`CREATE OR REPLACE FUNCTION signalbox_notify_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + EventChannel + `',
		json_build_object('table', TG_TABLE_NAME, 'op', TG_OP)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS agent_configs_notify ON agent_configs`,
	`CREATE TRIGGER agent_configs_notify
	AFTER INSERT OR UPDATE OR DELETE ON agent_configs
	FOR EACH STATEMENT EXECUTE FUNCTION signalbox_notify_change()`,
	`DROP TRIGGER IF EXISTS system_defaults_notify ON system_defaults`,
	`CREATE TRIGGER system_defaults_notify
	AFTER INSERT OR UPDATE OR DELETE ON system_defaults
	FOR EACH STATEMENT EXECUTE FUNCTION signalbox_notify_change()`,
}

// InstallNotifyTriggers sets up the Postgres change notifier on the
// watched tables. No-op guidance: only call for the postgres driver;
// other backends use the polling change stream instead.
func InstallNotifyTriggers(gdb *gorm.DB) error {
	for _, stmt := range notifyTriggerSQL {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("db: install notify triggers: %w", err)
		}
	}
	return nil
}
