package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/campuswalk/jaileon/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
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
	if err := db.AutoMigrate(&users.User{}, &PointTransaction{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string, points int64) {
	t.Helper()
	user := users.User{
		ID:          id,
		DisplayName: "name-" + id,
		Email:       id + "@example.com",
		Points:      points,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestApplyDeltaAppendsEntryAndUpdatesBalance(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "user-1", 30)
	service := newTestService(t, db)

	balance, err := service.ApplyDelta(context.Background(), Delta{
		UserID: "user-1",
		Amount: 20,
		Reason: "Caught Jaileon at Library",
	})
	if err != nil {
		t.Fatalf("unexpected apply error: %v", err)
	}
	if balance != 50 {
		t.Fatalf("expected balance 50, got %d", balance)
	}

	var entry PointTransaction
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("failed to load ledger entry: %v", err)
	}
	if entry.Amount != 20 || entry.BalanceAfter != 50 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.ActingAdminID != nil {
		t.Fatalf("expected no acting admin")
	}

	var user users.User
	if err := db.Where("id = ?", "user-1").Take(&user).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if user.Points != 50 {
		t.Fatalf("expected denormalized points 50, got %d", user.Points)
	}
}

func TestApplyDeltaRejectsOverdraftWhenRequired(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "user-1", 10)
	service := newTestService(t, db)

	_, err := service.ApplyDelta(context.Background(), Delta{
		UserID:             "user-1",
		Amount:             -30,
		Reason:             "manual deduction",
		RequireNonNegative: true,
	})
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}

	var entryCount int64
	if err := db.Model(&PointTransaction{}).Count(&entryCount).Error; err != nil {
		t.Fatalf("failed to count entries: %v", err)
	}
	if entryCount != 0 {
		t.Fatalf("rejected delta must not write an entry, found %d", entryCount)
	}

	var user users.User
	if err := db.Where("id = ?", "user-1").Take(&user).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if user.Points != 10 {
		t.Fatalf("balance must remain 10, got %d", user.Points)
	}
}

func TestApplyDeltaRecordsActingAdmin(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "user-1", 100)
	service := newTestService(t, db)

	adminID := "admin-1"
	balance, err := service.ApplyDelta(context.Background(), Delta{
		UserID:             "user-1",
		Amount:             -40,
		Reason:             "event correction",
		ActingAdminID:      &adminID,
		RequireNonNegative: true,
	})
	if err != nil {
		t.Fatalf("unexpected apply error: %v", err)
	}
	if balance != 60 {
		t.Fatalf("expected balance 60, got %d", balance)
	}

	var entry PointTransaction
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("failed to load entry: %v", err)
	}
	if entry.ActingAdminID == nil || *entry.ActingAdminID != adminID {
		t.Fatalf("expected acting admin %q, got %v", adminID, entry.ActingAdminID)
	}
}

func TestLedgerSumAlwaysMatchesUserPoints(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "user-1", 0)
	service := newTestService(t, db)

	deltas := []int64{20, 5, 100, -50, 30, -10}
	for _, amount := range deltas {
		if _, err := service.ApplyDelta(context.Background(), Delta{
			UserID:             "user-1",
			Amount:             amount,
			Reason:             "test delta",
			RequireNonNegative: true,
		}); err != nil {
			t.Fatalf("unexpected apply error for %d: %v", amount, err)
		}
	}

	var sum int64
	if err := db.Model(&PointTransaction{}).
		Where("user_id = ?", "user-1").
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error; err != nil {
		t.Fatalf("failed to sum entries: %v", err)
	}

	var user users.User
	if err := db.Where("id = ?", "user-1").Take(&user).Error; err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if sum != user.Points {
		t.Fatalf("ledger sum %d diverged from user points %d", sum, user.Points)
	}
	if user.Points != 95 {
		t.Fatalf("expected final balance 95, got %d", user.Points)
	}
}

func TestApplyDeltaUnknownUser(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	_, err := service.ApplyDelta(context.Background(), Delta{
		UserID: "missing",
		Amount: 10,
		Reason: "test",
	})
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestHistoryReturnsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "user-1", 0)
	service := newTestService(t, db)

	for _, reason := range []string{"first", "second", "third"} {
		if _, err := service.ApplyDelta(context.Background(), Delta{
			UserID: "user-1",
			Amount: 5,
			Reason: reason,
		}); err != nil {
			t.Fatalf("unexpected apply error: %v", err)
		}
	}

	entries, err := service.History(context.Background(), "user-1", 2)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Reason != "third" || entries[1].Reason != "second" {
		t.Fatalf("unexpected order: %s, %s", entries[0].Reason, entries[1].Reason)
	}
}
