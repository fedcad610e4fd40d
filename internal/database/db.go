package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timeclock/internal/auth"
	"timeclock/internal/civiltime"
	"timeclock/internal/config"
	"timeclock/internal/models"
)

const (
	maxAttempts  = 10
	retryBackoff = 2 * time.Second
)

// Open connects to the configured database, retrying while a networked
// server is still starting up.
func Open(cfg *config.Config, clock civiltime.Clock, log *slog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg, clock)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc:        clock.Now,
		TranslateError: true,
	}

	attempts := maxAttempts
	if cfg.DBDriver == config.DriverSQLite {
		attempts = 1
	}

	var db *gorm.DB
	for i := 1; i <= attempts; i++ {
		log.Info("connecting to database", "driver", cfg.DBDriver, "attempt", i, "max_attempts", attempts)
		db, err = gorm.Open(dialector, gormCfg)
		if err == nil {
			break
		}
		log.Warn("failed to connect to database", "error", err)
		if i < attempts {
			time.Sleep(retryBackoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.DBDriver, attempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		// one writer keeps SQLite from returning SQLITE_BUSY under load
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Info("connected to database", "driver", cfg.DBDriver)
	return db, nil
}

func dialectorFor(cfg *config.Config, clock civiltime.Clock) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.Open(cfg.DBDSN), nil
	case config.DriverMySQL:
		return mysql.Open(MySQLDSN(cfg.DBDSN, clock.Location().String())), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.DBDSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// MySQLDSN converts a mysql:// or mariadb:// URL into a go-sql-driver DSN.
// Plain DSNs pass through. parseTime and loc default to the civil zone.
func MySQLDSN(raw, zone string) string {
	defaultParams := "charset=utf8mb4&parseTime=True&loc=" + url.QueryEscape(zone)

	rest, ok := strings.CutPrefix(raw, "mysql://")
	if !ok {
		rest, ok = strings.CutPrefix(raw, "mariadb://")
	}
	if !ok {
		if strings.Contains(raw, "?") {
			return raw
		}
		return raw + "?" + defaultParams
	}

	creds, hostAndDB, found := strings.Cut(rest, "@")
	if !found {
		return raw
	}
	hostPort, dbName, found := strings.Cut(hostAndDB, "/")
	if !found {
		return raw
	}
	params := defaultParams
	if name, query, hasQuery := strings.Cut(dbName, "?"); hasQuery {
		dbName, params = name, query
	}
	return fmt.Sprintf("%s@tcp(%s)/%s?%s", creds, hostPort, dbName, params)
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.ClockRecord{},
		&models.ClockRequest{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// MySQL has no partial indexes; there the row lock taken by clock-in is
	// the only guard.
	switch db.Dialector.Name() {
	case "postgres", "sqlite":
		err = db.WithContext(ctx).Exec(
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_clock_records_one_open ON clock_records (user_id) WHERE clock_out IS NULL",
		).Error
		if err != nil {
			return fmt.Errorf("create open session index: %w", err)
		}
	}
	return nil
}

// ErrNoAdminPassword is returned when bootstrap seeding has no password to use.
var ErrNoAdminPassword = errors.New("ADMIN_PASSWORD is not set")

// AdminSeed describes the bootstrap administrator.
type AdminSeed struct {
	Username string
	Password string
	Email    string
	FullName string
}

// EnsureAdmin creates the bootstrap administrator when no admin exists yet.
// It reports whether a user was created.
func EnsureAdmin(ctx context.Context, db *gorm.DB, seed AdminSeed) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if seed.Password == "" {
		return false, ErrNoAdminPassword
	}

	hash, err := auth.HashPassword(seed.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	if seed.FullName == "" {
		seed.FullName = "System Manager"
	}

	admin := models.User{
		Username:     seed.Username,
		PasswordHash: hash,
		Email:        seed.Email,
		FullName:     seed.FullName,
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		return WriteAudit(tx, AuditEntry{
			Action:   models.AuditCreate,
			Entity:   "users",
			EntityID: admin.ID,
			New:      map[string]any{"username": admin.Username, "email": admin.Email, "role": admin.Role, "status": admin.Status},
		})
	})
	if err != nil {
		return false, fmt.Errorf("create admin user: %w", err)
	}
	return true, nil
}
