package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campuswalk/jaileon/backend/internal/users"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInsufficientPoints indicates the delta would drive the balance negative.
	ErrInsufficientPoints = errors.New("ledger: insufficient points")
	// ErrUnknownUser indicates the delta references a user that does not exist.
	ErrUnknownUser = errors.New("ledger: unknown user")

	errMissingDatabase = errors.New("ledger: database handle is required")
	errMissingUserID   = errors.New("ledger: user identifier is required")
	errMissingReason   = errors.New("ledger: reason is required")
)

// Delta describes one signed balance change.
type Delta struct {
	UserID        string
	Amount        int64
	Reason        string
	ActingAdminID *string
	// RequireNonNegative rejects the delta instead of letting the balance
	// drop below zero. Admin deductions and exchange debits set it.
	RequireNonNegative bool
}

func (d Delta) validate() error {
	if strings.TrimSpace(d.UserID) == "" {
		return errMissingUserID
	}
	if strings.TrimSpace(d.Reason) == "" {
		return errMissingReason
	}
	return nil
}

// ServiceConfig describes the dependencies of the ledger service.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service is the only legal writer of user balances. Every change appends a
// PointTransaction row and keeps users.points in step inside one transaction.
type Service struct {
	db *gorm.DB
}

// NewService constructs the ledger service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	return &Service{db: cfg.Database}, nil
}

// ApplyDelta executes the delta as one atomic unit and returns the new balance.
func (s *Service) ApplyDelta(ctx context.Context, delta Delta) (int64, error) {
	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, applyErr := ApplyDeltaTx(tx, delta)
		if applyErr != nil {
			return applyErr
		}
		newBalance = balance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// ApplyDeltaTx applies the delta inside an already-open transaction. The user
// row is locked for update so concurrent deltas for the same user serialize.
func ApplyDeltaTx(tx *gorm.DB, delta Delta) (int64, error) {
	if err := delta.validate(); err != nil {
		return 0, err
	}

	var user users.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", delta.UserID).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUnknownUser
	}
	if err != nil {
		return 0, err
	}

	newBalance := user.Points + delta.Amount
	if delta.RequireNonNegative && newBalance < 0 {
		return 0, fmt.Errorf("%w: balance %d, delta %d", ErrInsufficientPoints, user.Points, delta.Amount)
	}

	entry := PointTransaction{
		UserID:        delta.UserID,
		Amount:        delta.Amount,
		Reason:        strings.TrimSpace(delta.Reason),
		BalanceAfter:  newBalance,
		ActingAdminID: delta.ActingAdminID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}

	if err := tx.Model(&users.User{}).
		Where("id = ?", delta.UserID).
		Update("points", newBalance).Error; err != nil {
		return 0, err
	}

	return newBalance, nil
}

// History returns the most recent ledger entries for a user, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]PointTransaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errMissingUserID
	}
	if limit <= 0 {
		limit = 50
	}
	var entries []PointTransaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
