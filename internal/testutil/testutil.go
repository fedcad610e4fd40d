// Package testutil provides an in-memory database and a controllable clock
// for package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timeclock/internal/auth"
	"timeclock/internal/civiltime"
	"timeclock/internal/database"
	"timeclock/internal/models"
)

// Zone is the civil zone used throughout the tests.
var Zone = time.FixedZone("PST", -8*3600)

const DefaultLocation = "Main Clinic"

// FakeClock is a settable time source.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Civil wraps fc as a civiltime.Clock in Zone.
func (c *FakeClock) Civil() civiltime.Clock {
	return civiltime.New(Zone, c.Now)
}

// At builds a time in Zone.
func At(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, Zone)
}

var dbSeq atomic.Int64

// OpenDB returns a migrated in-memory SQLite database whose gorm clock is fc.
func OpenDB(t testing.TB, fc *FakeClock) *gorm.DB {
	t.Helper()
	auth.PasswordCost = bcrypt.MinCost

	dsn := fmt.Sprintf("file:timeclock_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return fc.Now().In(Zone) },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts an active user with password "password".
func CreateUser(t testing.TB, db *gorm.DB, username string, role models.UserRole) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        username + "@example.com",
		FullName:     username,
		Role:         role,
		Status:       models.StatusActive,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreateRecord inserts a session directly, bypassing the ledger.
func CreateRecord(t testing.TB, db *gorm.DB, userID uint, location string, in time.Time, out *time.Time, breakMinutes int) models.ClockRecord {
	t.Helper()
	rec := models.ClockRecord{
		UserID:       userID,
		ClockIn:      in,
		ClockOut:     out,
		BreakMinutes: breakMinutes,
		Location:     location,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create record: %v", err)
	}
	// a zero break would be replaced by the column default on insert
	if breakMinutes == 0 {
		if err := db.Model(&rec).UpdateColumn("break_minutes", 0).Error; err != nil {
			t.Fatalf("zero break: %v", err)
		}
		rec.BreakMinutes = 0
	}
	return rec
}

func TimePtr(t time.Time) *time.Time { return &t }
