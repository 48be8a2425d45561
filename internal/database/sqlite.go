package database

import (
	"fmt"

	"github.com/campuswalk/jaileon/backend/internal/badges"
	"github.com/campuswalk/jaileon/backend/internal/capture"
	"github.com/campuswalk/jaileon/backend/internal/exchange"
	"github.com/campuswalk/jaileon/backend/internal/ledger"
	"github.com/campuswalk/jaileon/backend/internal/locations"
	"github.com/campuswalk/jaileon/backend/internal/outcome"
	"github.com/campuswalk/jaileon/backend/internal/stats"
	"github.com/campuswalk/jaileon/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// TranslateError is enabled so uniqueness violations surface as
// gorm.ErrDuplicatedKey, which the duplicate-scan and award paths rely on.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate applies the schema and one-shot data migrations. Exposed separately
// so tests can run it against in-memory databases.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(
		&users.User{},
		&locations.Location{},
		&outcome.DailyOutcome{},
		&capture.Scan{},
		&ledger.PointTransaction{},
		&badges.Badge{},
		&badges.UserBadge{},
		&exchange.Reward{},
		&exchange.Exchange{},
		&stats.ScanStat{},
		&migrationRecord{},
	); err != nil {
		return err
	}

	return applyMigrations(db, logger)
}
