package badges

import "time"

// Badge is one catalog entry for a milestone achievement. The catalog is
// seeded at startup and stable; gameplay only ever reads it.
type Badge struct {
	ID          string    `gorm:"column:id;primaryKey;size:64;not null"`
	Name        string    `gorm:"column:name;size:190;not null"`
	Description string    `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing the badge catalog.
func (Badge) TableName() string {
	return "badges"
}

// UserBadge records a one-time award. The (user, badge) pair is unique and the
// row is immutable once created.
type UserBadge struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_user_badges_user_badge,priority:1"`
	BadgeID   string    `gorm:"column:badge_id;size:64;not null;uniqueIndex:idx_user_badges_user_badge,priority:2"`
	AwardedAt time.Time `gorm:"column:awarded_at;autoCreateTime"`
}

// TableName exposes the table backing badge awards.
func (UserBadge) TableName() string {
	return "user_badges"
}
