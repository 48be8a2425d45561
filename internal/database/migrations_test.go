package database

import (
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/campuswalk/jaileon/backend/internal/badges"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestMigrateSeedsBadgeCatalog(t *testing.T) {
	db := newTestDB(t)

	if err := Migrate(db, nil); err != nil {
		t.Fatalf("unexpected migrate error: %v", err)
	}

	var seeded int64
	if err := db.Model(&badges.Badge{}).Count(&seeded).Error; err != nil {
		t.Fatalf("failed to count badges: %v", err)
	}
	if seeded != int64(len(badges.Catalog)) {
		t.Fatalf("expected %d catalog entries, got %d", len(badges.Catalog), seeded)
	}

	var record migrationRecord
	if err := db.Where("name = ?", migrationSeedBadgeCatalog).Take(&record).Error; err != nil {
		t.Fatalf("expected migration record: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	if err := Migrate(db, nil); err != nil {
		t.Fatalf("unexpected first migrate error: %v", err)
	}

	// Touch a catalog row so a re-seed would be visible.
	if err := db.Model(&badges.Badge{}).
		Where("id = ?", badges.BadgeFirstCapture).
		Update("name", "Renamed").Error; err != nil {
		t.Fatalf("failed to rename badge: %v", err)
	}

	if err := Migrate(db, nil); err != nil {
		t.Fatalf("unexpected second migrate error: %v", err)
	}

	var badge badges.Badge
	if err := db.Where("id = ?", badges.BadgeFirstCapture).Take(&badge).Error; err != nil {
		t.Fatalf("failed to load badge: %v", err)
	}
	if badge.Name != "Renamed" {
		t.Fatalf("second migrate must not re-seed applied migrations, got %q", badge.Name)
	}

	var records int64
	if err := db.Model(&migrationRecord{}).Count(&records).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if records != 1 {
		t.Fatalf("expected a single migration record, got %d", records)
	}
}
