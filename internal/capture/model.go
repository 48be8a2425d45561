package capture

import (
	"time"

	"github.com/campuswalk/jaileon/backend/internal/outcome"
)

// Scan is one scan attempt. The (user, location, date) triple is unique; the
// database constraint is the real duplicate-scan guard since two requests can
// race past the application pre-check. Points folds any streak bonus in.
type Scan struct {
	ID         uint64       `gorm:"column:id;primaryKey;autoIncrement"`
	UserID     string       `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_scans_user_location_date,priority:1"`
	LocationID uint64       `gorm:"column:location_id;not null;uniqueIndex:idx_scans_user_location_date,priority:2"`
	Date       string       `gorm:"column:date;size:10;not null;uniqueIndex:idx_scans_user_location_date,priority:3;index:idx_scans_user_date"`
	Outcome    outcome.Kind `gorm:"column:outcome;size:32;not null"`
	Caught     bool         `gorm:"column:caught;not null"`
	Points     int64        `gorm:"column:points;not null"`
	CreatedAt  time.Time    `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing scans.
func (Scan) TableName() string {
	return "scans"
}
