package users

import (
	"strings"
	"time"
)

// Role separates ordinary players from console administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Affiliation classifications are used only for anonymous aggregate statistics.
const (
	AffiliationUndergraduate = "undergraduate"
	AffiliationGraduate      = "graduate"
	AffiliationFaculty       = "faculty"
	AffiliationStaff         = "staff"
	AffiliationOther         = "other"
)

// User is the canonical player record. The points and capture_count columns are
// denormalized running totals: points may only be written through the ledger
// service and capture_count only through the capture session.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	DisplayName  string    `gorm:"column:display_name;size:190;not null;uniqueIndex"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	Affiliation  string    `gorm:"column:affiliation;size:32;not null;default:'other'"`
	ResearchArea string    `gorm:"column:research_area;size:190"`
	Role         Role      `gorm:"column:role;size:16;not null;default:'user'"`
	Points       int64     `gorm:"column:points;not null;default:0"`
	CaptureCount int64     `gorm:"column:capture_count;not null;default:0"`
	Avatar       string    `gorm:"column:avatar;size:64"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user records.
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user may call privileged endpoints.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
