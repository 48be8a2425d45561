package outcome

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Bucket boundaries for the daily spawn draw over [0,1).
const (
	rainbowBucketUpper = 0.05
	jaileonBucketUpper = 0.65
)

var (
	errMissingOracleDatabase = errors.New("oracle: database handle is required")
	errMissingOracleSeed     = errors.New("oracle: seed is required")
)

// DailyOutcome pins the spawn character for one location on one calendar day.
// Created lazily on the first scan of the day and never mutated, so every user
// scanning the same location that day sees the same character.
type DailyOutcome struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LocationID uint64    `gorm:"column:location_id;not null;uniqueIndex:idx_daily_outcomes_location_date,priority:1"`
	Date       string    `gorm:"column:date;size:10;not null;uniqueIndex:idx_daily_outcomes_location_date,priority:2"`
	Outcome    Kind      `gorm:"column:outcome;size:32;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing daily outcomes.
func (DailyOutcome) TableName() string {
	return "daily_outcomes"
}

// OracleConfig describes the dependencies of the outcome oracle.
type OracleConfig struct {
	Database *gorm.DB
	// Seed is the secret server seed mixed into the daily draw so spawns are
	// reproducible server-side but not guessable from location and date alone.
	Seed []byte
}

// Oracle resolves the deterministic daily spawn for a location.
type Oracle struct {
	db   *gorm.DB
	seed []byte
}

// NewOracle constructs the oracle.
func NewOracle(cfg OracleConfig) (*Oracle, error) {
	if cfg.Database == nil {
		return nil, errMissingOracleDatabase
	}
	if len(cfg.Seed) == 0 {
		return nil, errMissingOracleSeed
	}
	return &Oracle{db: cfg.Database, seed: append([]byte(nil), cfg.Seed...)}, nil
}

// Resolve returns the spawn character for (location, day), memoized through the
// daily_outcomes table. Two concurrent first-scanners race on the insert; the
// conflict is ignored and the stored row re-read so both converge on one value.
func (o *Oracle) Resolve(ctx context.Context, locationID uint64, day string) (Kind, error) {
	return o.ResolveTx(o.db.WithContext(ctx), locationID, day)
}

// ResolveTx is Resolve on a caller-supplied handle so the lookup can ride an
// open transaction.
func (o *Oracle) ResolveTx(db *gorm.DB, locationID uint64, day string) (Kind, error) {
	var existing DailyOutcome
	err := db.
		Where("location_id = ? AND date = ?", locationID, day).
		Take(&existing).Error
	if err == nil {
		return existing.Outcome, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	computed := o.Draw(locationID, day)
	row := DailyOutcome{LocationID: locationID, Date: day, Outcome: computed}
	if err := db.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", err
	}

	var stored DailyOutcome
	if err := db.
		Where("location_id = ? AND date = ?", locationID, day).
		Take(&stored).Error; err != nil {
		return "", err
	}
	return stored.Outcome, nil
}

// Draw computes the deterministic daily bucket without touching storage.
func (o *Oracle) Draw(locationID uint64, day string) Kind {
	value := o.unitValue(locationID, day)
	switch {
	case value < rainbowBucketUpper:
		return KindRainbow
	case value < jaileonBucketUpper:
		return KindJaileon
	default:
		return KindBird
	}
}

// unitValue hashes (seed, location, day) into [0,1).
func (o *Oracle) unitValue(locationID uint64, day string) float64 {
	hasher := sha256.New()
	hasher.Write(o.seed)
	fmt.Fprintf(hasher, ":%d:%s", locationID, day)
	digest := hasher.Sum(nil)
	raw := binary.BigEndian.Uint64(digest[:8])
	return float64(raw) / math.Exp2(64)
}
