package locations

import "time"

// Location is one physical QR-code site. The scan code is the opaque token
// embedded in the printed QR. Locations are toggled and renamed but never
// deleted in normal operation.
type Location struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	LocationNumber int       `gorm:"column:location_number;not null;uniqueIndex"`
	Code           string    `gorm:"column:code;size:64;not null;uniqueIndex"`
	Name           string    `gorm:"column:name;size:190;not null"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing locations.
func (Location) TableName() string {
	return "locations"
}
