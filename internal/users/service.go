package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuswalk/jaileon/backend/internal/auth"
	"gorm.io/gorm"
)

var (
	// ErrInvalidIdentity indicates the session claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUserNotFound indicates the referenced user record does not exist.
	ErrUserNotFound = errors.New("users: user not found")
)

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service resolves session claims to persistent user records.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// ResolveFromClaims returns the user record for the validated session claims,
// provisioning it on first sight. Two concurrent first requests for the same
// identity converge on the row created by whichever insert won.
func (s *Service) ResolveFromClaims(ctx context.Context, claims auth.SessionClaims) (User, error) {
	userID := normalize(claims.UserID)
	if userID == "" {
		return User{}, ErrInvalidIdentity
	}

	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{
			ID:          userID,
			DisplayName: displayNameOrFallback(claims),
			Email:       normalize(claims.UserEmail),
			Affiliation: AffiliationOther,
			Role:        roleFromClaims(claims),
		}
		if user.Email == "" {
			return User{}, ErrInvalidIdentity
		}
		if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				if rereadErr := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; rereadErr == nil {
					return user, nil
				}
			}
			return User{}, createErr
		}
		return user, nil
	}
	if err != nil {
		return User{}, err
	}

	// Keep the role in step with the auth frontend so a promotion takes effect
	// on the next request.
	if role := roleFromClaims(claims); role != user.Role {
		if updateErr := s.db.WithContext(ctx).Model(&User{}).
			Where("id = ?", userID).
			Update("role", role).Error; updateErr == nil {
			user.Role = role
		}
	}

	return user, nil
}

// Get loads a user by identifier.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", normalize(userID)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Delete removes the user and cascades all owned records.
func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"scans", "point_transactions", "user_badges", "exchanges"} {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", table), userID).Error; err != nil {
				return err
			}
		}
		result := tx.Where("id = ?", userID).Delete(&User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

func displayNameOrFallback(claims auth.SessionClaims) string {
	if name := normalize(claims.UserDisplayName); name != "" {
		return name
	}
	return normalize(claims.UserID)
}

func roleFromClaims(claims auth.SessionClaims) Role {
	if claims.HasRole(auth.RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}
