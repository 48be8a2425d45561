package locations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrLocationNotFound indicates no location matches the lookup.
	ErrLocationNotFound = errors.New("locations: location not found")
	// ErrDuplicateLocation indicates the location number is already taken.
	ErrDuplicateLocation = errors.New("locations: duplicate location number")

	errMissingLocationsDatabase = errors.New("locations: database handle is required")
	errMissingLocationName      = errors.New("locations: name is required")
)

// ServiceConfig describes the dependencies of the location service.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service manages the location registry.
type Service struct {
	db *gorm.DB
}

// NewService constructs the location service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingLocationsDatabase
	}
	return &Service{db: cfg.Database}, nil
}

// FindByCode resolves a scan token to its location.
func (s *Service) FindByCode(ctx context.Context, code string) (Location, error) {
	var location Location
	err := s.db.WithContext(ctx).Where("code = ?", strings.TrimSpace(code)).Take(&location).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Location{}, ErrLocationNotFound
	}
	if err != nil {
		return Location{}, err
	}
	return location, nil
}

// List returns all locations ordered by location number.
func (s *Service) List(ctx context.Context) ([]Location, error) {
	var all []Location
	if err := s.db.WithContext(ctx).Order("location_number ASC").Find(&all).Error; err != nil {
		return nil, err
	}
	return all, nil
}

// CountActive returns the number of currently active locations.
func (s *Service) CountActive(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Location{}).Where("active = ?", true).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create registers a new location with a freshly minted scan code.
func (s *Service) Create(ctx context.Context, locationNumber int, name string) (Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Location{}, errMissingLocationName
	}
	code, err := uuid.NewV7()
	if err != nil {
		return Location{}, err
	}
	location := Location{
		LocationNumber: locationNumber,
		Code:           code.String(),
		Name:           trimmed,
		Active:         true,
	}
	if err := s.db.WithContext(ctx).Create(&location).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Location{}, fmt.Errorf("%w: %d", ErrDuplicateLocation, locationNumber)
		}
		return Location{}, err
	}
	return location, nil
}

// SetActive toggles the activation flag.
func (s *Service) SetActive(ctx context.Context, locationID uint64, active bool) (Location, error) {
	return s.Update(ctx, locationID, map[string]interface{}{"active": active})
}

// Rename updates the display name.
func (s *Service) Rename(ctx context.Context, locationID uint64, name string) (Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Location{}, errMissingLocationName
	}
	return s.Update(ctx, locationID, map[string]interface{}{"name": trimmed})
}

// Update applies a partial change set to a location in one statement.
func (s *Service) Update(ctx context.Context, locationID uint64, changes map[string]interface{}) (Location, error) {
	result := s.db.WithContext(ctx).Model(&Location{}).Where("id = ?", locationID).Updates(changes)
	if result.Error != nil {
		return Location{}, result.Error
	}
	if result.RowsAffected == 0 {
		return Location{}, ErrLocationNotFound
	}
	var location Location
	if err := s.db.WithContext(ctx).Where("id = ?", locationID).Take(&location).Error; err != nil {
		return Location{}, err
	}
	return location, nil
}
