package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/campuswalk/jaileon/backend/internal/auth"
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
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	// Owned tables the delete cascade touches.
	for _, stmt := range []string{
		"CREATE TABLE scans (id integer primary key, user_id text)",
		"CREATE TABLE point_transactions (id integer primary key, user_id text)",
		"CREATE TABLE user_badges (id integer primary key, user_id text)",
		"CREATE TABLE exchanges (id text primary key, user_id text)",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create table: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestResolveFromClaimsProvisionsNewUser(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	claims := auth.SessionClaims{
		UserID:          " walker-1 ",
		UserEmail:       "walker@example.edu",
		UserDisplayName: "Walker One",
	}

	user, err := service.ResolveFromClaims(context.Background(), claims)
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if user.ID != "walker-1" {
		t.Fatalf("expected trimmed identifier, got %q", user.ID)
	}
	if user.DisplayName != "Walker One" {
		t.Fatalf("unexpected display name %q", user.DisplayName)
	}
	if user.Role != RoleUser {
		t.Fatalf("expected member role, got %q", user.Role)
	}
	if user.Points != 0 || user.CaptureCount != 0 {
		t.Fatalf("new user must start at zero, got points=%d captures=%d", user.Points, user.CaptureCount)
	}

	var stored int64
	if err := db.Model(&User{}).Count(&stored).Error; err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if stored != 1 {
		t.Fatalf("expected 1 user row, got %d", stored)
	}
}

func TestResolveFromClaimsReturnsExistingUser(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	seeded := User{ID: "walker-1", DisplayName: "Walker One", Email: "walker@example.edu", Role: RoleUser, Points: 140}
	if err := db.Create(&seeded).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	user, err := service.ResolveFromClaims(context.Background(), auth.SessionClaims{
		UserID:    "walker-1",
		UserEmail: "walker@example.edu",
	})
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if user.Points != 140 {
		t.Fatalf("expected existing balance preserved, got %d", user.Points)
	}
}

func TestResolveFromClaimsSyncsRolePromotion(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	if err := db.Create(&User{ID: "walker-1", DisplayName: "Walker One", Email: "walker@example.edu", Role: RoleUser}).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	user, err := service.ResolveFromClaims(context.Background(), auth.SessionClaims{
		UserID:    "walker-1",
		UserEmail: "walker@example.edu",
		UserRoles: []string{auth.RoleAdmin},
	})
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if user.Role != RoleAdmin {
		t.Fatalf("expected promoted role, got %q", user.Role)
	}

	var stored User
	if err := db.Where("id = ?", "walker-1").First(&stored).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	if stored.Role != RoleAdmin {
		t.Fatalf("expected persisted promotion, got %q", stored.Role)
	}
}

func TestResolveFromClaimsRejectsEmptyIdentity(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	if _, err := service.ResolveFromClaims(context.Background(), auth.SessionClaims{UserID: "   "}); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestGetUnknownUser(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	if _, err := service.Get(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeleteCascadesOwnedRecords(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	if err := db.Create(&User{ID: "walker-1", DisplayName: "Walker One", Email: "walker@example.edu", Role: RoleUser}).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	for _, stmt := range []string{
		"INSERT INTO scans (user_id) VALUES ('walker-1')",
		"INSERT INTO point_transactions (user_id) VALUES ('walker-1')",
		"INSERT INTO user_badges (user_id) VALUES ('walker-1')",
		"INSERT INTO exchanges (id, user_id) VALUES ('x-1', 'walker-1')",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to seed owned row: %v", err)
		}
	}

	if err := service.Delete(context.Background(), "walker-1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	for _, table := range []string{"scans", "point_transactions", "user_badges", "exchanges", "users"} {
		var remaining int64
		if err := db.Table(table).Count(&remaining).Error; err != nil {
			t.Fatalf("failed to count %s: %v", table, err)
		}
		if remaining != 0 {
			t.Fatalf("expected %s emptied, found %d rows", table, remaining)
		}
	}
}

func TestDeleteUnknownUser(t *testing.T) {
	db := newTestDB(t)
	service := newTestService(t, db)

	if err := service.Delete(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
