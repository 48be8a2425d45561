// Package stats records anonymized scan events for aggregate reporting.
package stats

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingStatsDatabase = errors.New("stats: database handle is required")

// ScanStat is one anonymized scan event. It deliberately carries no user
// identifier; affiliation and research area are the only demographic fields.
type ScanStat struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Affiliation    string    `gorm:"column:affiliation;size:32;not null"`
	ResearchArea   string    `gorm:"column:research_area;size:190"`
	LocationNumber int       `gorm:"column:location_number;not null;index"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing anonymized scan statistics.
func (ScanStat) TableName() string {
	return "scan_stats"
}

// RecorderConfig describes the dependencies of the stat recorder.
type RecorderConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Recorder writes anonymized scan rows. Failures are logged and swallowed;
// statistics are a non-essential side effect of a successful scan.
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRecorder constructs the stat recorder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Database == nil {
		return nil, errMissingStatsDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: cfg.Database, logger: logger}, nil
}

// Record persists one anonymized scan event.
func (r *Recorder) Record(ctx context.Context, affiliation, researchArea string, locationNumber int) {
	row := ScanStat{
		Affiliation:    affiliation,
		ResearchArea:   researchArea,
		LocationNumber: locationNumber,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.logger.Warn("scan stat insert failed",
			zap.Int("location_number", locationNumber),
			zap.Error(err))
	}
}
