package ledger

import "time"

// PointTransaction is one append-only ledger entry. Rows are never updated or
// deleted; the running users.points column always equals the sum of a user's
// entry amounts, and BalanceAfter snapshots that sum at write time.
type PointTransaction struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID        string    `gorm:"column:user_id;size:190;not null;index:idx_point_transactions_user_time,priority:1"`
	Amount        int64     `gorm:"column:amount;not null"`
	Reason        string    `gorm:"column:reason;type:text;not null"`
	BalanceAfter  int64     `gorm:"column:balance_after;not null"`
	ActingAdminID *string   `gorm:"column:acting_admin_id;size:190"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime;index:idx_point_transactions_user_time,priority:2"`
}

// TableName exposes the table backing ledger entries.
func (PointTransaction) TableName() string {
	return "point_transactions"
}
