package commands

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"timeclock/internal/config"
	"timeclock/internal/logging"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBDriver:        config.DriverSQLite,
		DBDSN:           filepath.Join(t.TempDir(), "timeclock.db"),
		Timezone:        "America/Vancouver",
		DefaultLocation: "Main Clinic",
		LogLevel:        "error",
	}
}

func TestOpenEnvClosesOnMigrateFailure(t *testing.T) {
	var opened *gorm.DB
	migrate = func(ctx context.Context, db *gorm.DB) error {
		opened = db
		return errors.New("schema locked")
	}
	t.Cleanup(func() { migrate = defaultMigrate })

	e, err := openEnv(context.Background(), sqliteConfig(t), logging.Discard())
	if err == nil || e != nil {
		t.Fatalf("expected migrate error, got env=%v err=%v", e, err)
	}
	if opened == nil {
		t.Fatalf("expected migrate to run")
	}
	sqlDB, err := opened.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Fatalf("expected the connection to be closed")
	}
}

func TestOpenEnv(t *testing.T) {
	e, err := openEnv(context.Background(), sqliteConfig(t), logging.Discard())
	if err != nil {
		t.Fatalf("openEnv: %v", err)
	}
	defer e.close()
	if e.clock.Location().String() != "America/Vancouver" {
		t.Fatalf("unexpected zone %s", e.clock.Location())
	}
	if !e.db.Migrator().HasTable("clock_records") {
		t.Fatalf("expected migrated schema")
	}
}
