package exchange

import "time"

// Status tracks the redemption lifecycle: pending until an administrator hands
// the reward over (used) or cancels it (refunding the spent points).
type Status string

const (
	StatusPending   Status = "pending"
	StatusUsed      Status = "used"
	StatusCancelled Status = "cancelled"
)

// Reward is one redeemable catalog item. Stock is decremented by the exchange
// engine and restocked by administrators.
type Reward struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Name           string    `gorm:"column:name;size:190;not null"`
	Description    string    `gorm:"column:description;type:text"`
	RequiredPoints int64     `gorm:"column:required_points;not null"`
	Stock          int       `gorm:"column:stock;not null;default:0"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing rewards.
func (Reward) TableName() string {
	return "rewards"
}

// Exchange is one redemption. PointsSpent is the exact amount refunded when a
// pending exchange is cancelled.
type Exchange struct {
	ID           string    `gorm:"column:id;primaryKey;size:64;not null"`
	UserID       string    `gorm:"column:user_id;size:190;not null;index"`
	RewardID     uint64    `gorm:"column:reward_id;not null;index"`
	PointsSpent  int64     `gorm:"column:points_spent;not null"`
	ExchangeCode string    `gorm:"column:exchange_code;size:32;not null;uniqueIndex"`
	Status       Status    `gorm:"column:status;size:16;not null;default:'pending'"`
	FinalizedBy  *string   `gorm:"column:finalized_by;size:190"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing exchanges.
func (Exchange) TableName() string {
	return "exchanges"
}
