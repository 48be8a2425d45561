package exchange

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"github.com/campuswalk/jaileon/backend/internal/ledger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrRewardNotFound indicates the referenced reward does not exist.
	ErrRewardNotFound = errors.New("exchange: reward not found")
	// ErrRewardInactive indicates the reward has been deactivated.
	ErrRewardInactive = errors.New("exchange: reward inactive")
	// ErrOutOfStock indicates the reward has no remaining stock.
	ErrOutOfStock = errors.New("exchange: out of stock")
	// ErrExchangeNotFound indicates the referenced exchange does not exist.
	ErrExchangeNotFound = errors.New("exchange: exchange not found")
	// ErrNotPending indicates a finalize attempt on a non-pending exchange.
	ErrNotPending = errors.New("exchange: exchange is not pending")
	// ErrInvalidStatus indicates a finalize target other than used/cancelled.
	ErrInvalidStatus = errors.New("exchange: invalid target status")

	errMissingExchangeDatabase = errors.New("exchange: database handle is required")
)

// Receipt is returned to the user after a successful redemption.
type Receipt struct {
	ExchangeID   string
	ExchangeCode string
	PointsAfter  int64
}

// ServiceConfig describes the dependencies of the exchange engine.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service atomically trades user points for reward stock. All stock and
// balance checks happen inside one transaction with the reward row locked, so
// concurrent redemptions of the last unit cannot oversell.
type Service struct {
	db *gorm.DB
}

// NewService constructs the exchange engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingExchangeDatabase
	}
	return &Service{db: cfg.Database}, nil
}

// Redeem spends the user's points on one unit of the reward.
func (s *Service) Redeem(ctx context.Context, userID string, rewardID uint64) (Receipt, error) {
	var receipt Receipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reward Reward
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", rewardID).
			Take(&reward).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRewardNotFound
		}
		if err != nil {
			return err
		}
		if !reward.Active {
			return ErrRewardInactive
		}
		if reward.Stock <= 0 {
			return ErrOutOfStock
		}

		if err := tx.Model(&Reward{}).
			Where("id = ?", reward.ID).
			Update("stock", gorm.Expr("stock - 1")).Error; err != nil {
			return err
		}

		// The non-negative ledger debit is the overdraft guard.
		balance, err := ledger.ApplyDeltaTx(tx, ledger.Delta{
			UserID:             userID,
			Amount:             -reward.RequiredPoints,
			Reason:             fmt.Sprintf("Reward exchange: %s", reward.Name),
			RequireNonNegative: true,
		})
		if err != nil {
			return err
		}

		exchangeID, err := uuid.NewV7()
		if err != nil {
			return err
		}

		// Retry the short code on the off chance it collides with an
		// existing ticket.
		var row Exchange
		for attempt := 0; ; attempt++ {
			code, codeErr := newExchangeCode()
			if codeErr != nil {
				return codeErr
			}
			row = Exchange{
				ID:           exchangeID.String(),
				UserID:       userID,
				RewardID:     reward.ID,
				PointsSpent:  reward.RequiredPoints,
				ExchangeCode: code,
				Status:       StatusPending,
			}
			createErr := tx.Create(&row).Error
			if createErr == nil {
				break
			}
			if errors.Is(createErr, gorm.ErrDuplicatedKey) && attempt < 2 {
				continue
			}
			return createErr
		}

		receipt = Receipt{
			ExchangeID:   row.ID,
			ExchangeCode: row.ExchangeCode,
			PointsAfter:  balance,
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// Finalize moves a pending exchange to used or cancelled. Cancellation refunds
// exactly the spent points once; a second concurrent cancel sees a non-pending
// status and refuses.
func (s *Service) Finalize(ctx context.Context, exchangeID string, target Status, adminID string) (Exchange, error) {
	if target != StatusUsed && target != StatusCancelled {
		return Exchange{}, fmt.Errorf("%w: %s", ErrInvalidStatus, target)
	}

	var finalized Exchange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row Exchange
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", exchangeID).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExchangeNotFound
		}
		if err != nil {
			return err
		}

		// The pending-only guard rides on the conditional update: if another
		// finalize slipped in between, RowsAffected is zero.
		result := tx.Model(&Exchange{}).
			Where("id = ? AND status = ?", exchangeID, StatusPending).
			Updates(map[string]interface{}{
				"status":       target,
				"finalized_by": adminID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotPending
		}

		if target == StatusCancelled {
			if _, err := ledger.ApplyDeltaTx(tx, ledger.Delta{
				UserID:        row.UserID,
				Amount:        row.PointsSpent,
				Reason:        fmt.Sprintf("Refund for cancelled exchange %s", row.ExchangeCode),
				ActingAdminID: &adminID,
			}); err != nil {
				return err
			}
			if err := tx.Model(&Reward{}).
				Where("id = ?", row.RewardID).
				Update("stock", gorm.Expr("stock + 1")).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("id = ?", exchangeID).Take(&finalized).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Exchange{}, err
	}
	return finalized, nil
}

// ListRewards returns rewards, optionally restricted to active ones.
func (s *Service) ListRewards(ctx context.Context, activeOnly bool) ([]Reward, error) {
	query := s.db.WithContext(ctx).Order("required_points ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rewards []Reward
	if err := query.Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

// CreateReward registers a new reward.
func (s *Service) CreateReward(ctx context.Context, reward Reward) (Reward, error) {
	reward.ID = 0
	reward.Name = strings.TrimSpace(reward.Name)
	if reward.Name == "" {
		return Reward{}, fmt.Errorf("exchange: reward name is required")
	}
	if reward.RequiredPoints <= 0 {
		return Reward{}, fmt.Errorf("exchange: reward cost must be positive")
	}
	if err := s.db.WithContext(ctx).Create(&reward).Error; err != nil {
		return Reward{}, err
	}
	return reward, nil
}

// UpdateReward applies admin changes to an existing reward.
func (s *Service) UpdateReward(ctx context.Context, rewardID uint64, changes map[string]interface{}) (Reward, error) {
	result := s.db.WithContext(ctx).Model(&Reward{}).Where("id = ?", rewardID).Updates(changes)
	if result.Error != nil {
		return Reward{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Reward{}, ErrRewardNotFound
	}
	var reward Reward
	if err := s.db.WithContext(ctx).Where("id = ?", rewardID).Take(&reward).Error; err != nil {
		return Reward{}, err
	}
	return reward, nil
}

// ListForUser returns the user's exchanges, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Exchange, error) {
	var rows []Exchange
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// newExchangeCode derives a short human-presentable ticket code.
func newExchangeCode() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw[:])
	return fmt.Sprintf("XC-%s-%s", encoded[0:4], encoded[4:8]), nil
}
