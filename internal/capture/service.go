package capture

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/campuswalk/jaileon/backend/internal/badges"
	"github.com/campuswalk/jaileon/backend/internal/ledger"
	"github.com/campuswalk/jaileon/backend/internal/locations"
	"github.com/campuswalk/jaileon/backend/internal/outcome"
	"github.com/campuswalk/jaileon/backend/internal/stats"
	"github.com/campuswalk/jaileon/backend/internal/streak"
	"github.com/campuswalk/jaileon/backend/internal/users"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidCode indicates the submitted scan token is not a UUID.
	ErrInvalidCode = errors.New("capture: invalid scan code")
	// ErrUnknownCode indicates no location carries the scan token.
	ErrUnknownCode = errors.New("capture: unknown scan code")
	// ErrInactiveLocation indicates the location has been deactivated.
	ErrInactiveLocation = errors.New("capture: location inactive")
	// ErrAlreadyScanned indicates the user already scanned this location today.
	ErrAlreadyScanned = errors.New("capture: already scanned today")

	errMissingCaptureDatabase  = errors.New("capture: database handle is required")
	errMissingCaptureLocations = errors.New("capture: location service is required")
	errMissingCaptureOracle    = errors.New("capture: outcome oracle is required")

	noOpLogger = zap.NewNop()
)

// streakBonusTable maps exact streak lengths to one-time daily bonuses.
var streakBonusTable = map[int]int64{
	3:  10,
	7:  30,
	14: 70,
	30: 150,
}

// recentScanWindow bounds the raw scan rows fetched for streak computation.
// Streaks are short relative to this, so the window never truncates one.
const recentScanWindow = 60

// ServiceConfig describes the dependencies of the capture session.
type ServiceConfig struct {
	Database  *gorm.DB
	Locations *locations.Service
	Oracle    *outcome.Oracle
	Badges    *badges.Evaluator
	Stats     *stats.Recorder
	Logger    *zap.Logger
	Clock     func() time.Time
	// Roll draws a uniform value in [0,1) for the catch decision. Injected so
	// tests can pin outcomes.
	Roll   func() float64
	Golden outcome.GoldenWindow
	Zone   *time.Location
}

// Service orchestrates one scan request: validation, outcome resolution, the
// catch roll, and the transactional commit of scan, ledger, and counters.
type Service struct {
	db        *gorm.DB
	locations *locations.Service
	oracle    *outcome.Oracle
	badges    *badges.Evaluator
	stats     *stats.Recorder
	logger    *zap.Logger
	clock     func() time.Time
	roll      func() float64
	golden    outcome.GoldenWindow
	zone      *time.Location
}

// NewService constructs the capture session service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingCaptureDatabase
	}
	if cfg.Locations == nil {
		return nil, errMissingCaptureLocations
	}
	if cfg.Oracle == nil {
		return nil, errMissingCaptureOracle
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	roll := cfg.Roll
	if roll == nil {
		roll = rand.Float64
	}
	zone := cfg.Zone
	if zone == nil {
		zone = time.UTC
	}
	golden := cfg.Golden
	if golden.Zone == nil {
		golden.Zone = zone
	}
	return &Service{
		db:        cfg.Database,
		locations: cfg.Locations,
		oracle:    cfg.Oracle,
		badges:    cfg.Badges,
		stats:     cfg.Stats,
		logger:    logger,
		clock:     clock,
		roll:      roll,
		golden:    golden,
		zone:      zone,
	}, nil
}

// Result is the response payload of one completed scan.
type Result struct {
	Outcome      outcome.Kind
	OutcomeName  string
	Captured     bool
	PointsEarned int64
	TotalPoints  int64
	CaptureCount int64
	LocationName string
	Streak       int
	StreakBonus  int64
	NewBadges    []string
}

// Capture runs one scan request for the authenticated user.
func (s *Service) Capture(ctx context.Context, user users.User, qrCode string) (Result, error) {
	if _, err := uuid.Parse(qrCode); err != nil {
		return Result{}, ErrInvalidCode
	}

	location, err := s.locations.FindByCode(ctx, qrCode)
	if errors.Is(err, locations.ErrLocationNotFound) {
		return Result{}, ErrUnknownCode
	}
	if err != nil {
		return Result{}, err
	}
	if !location.Active {
		return Result{}, ErrInactiveLocation
	}

	now := s.clock()
	day := outcome.DateKey(now, s.zone)

	// Fast path only; the unique index inside the transaction is the real
	// duplicate guard.
	var duplicate int64
	if err := s.db.WithContext(ctx).Model(&Scan{}).
		Where("user_id = ? AND location_id = ? AND date = ?", user.ID, location.ID, day).
		Count(&duplicate).Error; err != nil {
		return Result{}, err
	}
	if duplicate > 0 {
		return Result{}, ErrAlreadyScanned
	}

	rollValue := s.roll()

	var result Result
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the user row first so concurrent scans by the same user
		// serialize here. The first-scan-of-day decision below (golden
		// override, streak bonus) must see every committed scan.
		var current users.User
		if lockErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", user.ID).
			Take(&current).Error; lockErr != nil {
			if errors.Is(lockErr, gorm.ErrRecordNotFound) {
				return ledger.ErrUnknownUser
			}
			return lockErr
		}

		var todayScans int64
		if countErr := tx.Model(&Scan{}).
			Where("user_id = ? AND date = ?", user.ID, day).
			Count(&todayScans).Error; countErr != nil {
			return countErr
		}
		firstToday := todayScans == 0

		kind, outcomeErr := s.resolveOutcome(tx, location.ID, day, now, firstToday)
		if outcomeErr != nil {
			return outcomeErr
		}
		profile, ok := outcome.ProfileFor(kind)
		if !ok {
			return fmt.Errorf("capture: no profile for outcome %q", kind)
		}

		caught := rollValue < profile.CatchRate
		basePoints := profile.EscapePoints
		if caught {
			basePoints = profile.CatchPoints
		}

		streakLength := 0
		var streakBonus int64
		if firstToday {
			historicalDates, datesErr := recentScanDates(tx, user.ID, day)
			if datesErr != nil {
				return datesErr
			}
			// The in-flight scan is not persisted yet, so compute on history
			// and count today as one more day.
			streakLength = streak.Compute(historicalDates, day) + 1
			streakBonus = streakBonusTable[streakLength]
		}

		scan := Scan{
			UserID:     user.ID,
			LocationID: location.ID,
			Date:       day,
			Outcome:    kind,
			Caught:     caught,
			Points:     basePoints + streakBonus,
		}
		if createErr := tx.Create(&scan).Error; createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return ErrAlreadyScanned
			}
			return createErr
		}

		balance, ledgerErr := ledger.ApplyDeltaTx(tx, ledger.Delta{
			UserID: user.ID,
			Amount: basePoints,
			Reason: scanReason(profile, location.Name, caught),
		})
		if ledgerErr != nil {
			return ledgerErr
		}

		if streakBonus > 0 {
			balance, ledgerErr = ledger.ApplyDeltaTx(tx, ledger.Delta{
				UserID: user.ID,
				Amount: streakBonus,
				Reason: fmt.Sprintf("%d-day streak bonus", streakLength),
			})
			if ledgerErr != nil {
				return ledgerErr
			}
		}

		captureCount := current.CaptureCount
		if caught && !profile.Filler {
			if countErr := tx.Model(&users.User{}).
				Where("id = ?", user.ID).
				Update("capture_count", gorm.Expr("capture_count + 1")).Error; countErr != nil {
				return countErr
			}
			var refreshed users.User
			if readErr := tx.Where("id = ?", user.ID).Take(&refreshed).Error; readErr != nil {
				return readErr
			}
			captureCount = refreshed.CaptureCount
		}

		result = Result{
			Outcome:      kind,
			OutcomeName:  profile.DisplayName,
			Captured:     caught,
			PointsEarned: basePoints + streakBonus,
			TotalPoints:  balance,
			CaptureCount: captureCount,
			LocationName: location.Name,
			Streak:       streakLength,
			StreakBonus:  streakBonus,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// Statistics and badge evaluation are non-essential side effects of a
	// committed scan; failures are logged, never surfaced.
	if s.stats != nil {
		s.stats.Record(ctx, user.Affiliation, user.ResearchArea, location.LocationNumber)
	}
	result.NewBadges = s.evaluateBadges(ctx, user.ID, result, day)

	return result, nil
}

func (s *Service) resolveOutcome(tx *gorm.DB, locationID uint64, day string, now time.Time, firstToday bool) (outcome.Kind, error) {
	// The golden override is per-user and bypasses the oracle: no daily
	// outcome row is involved.
	if firstToday && s.golden.Contains(now) {
		return outcome.KindGolden, nil
	}
	return s.oracle.ResolveTx(tx, locationID, day)
}

func (s *Service) evaluateBadges(ctx context.Context, userID string, result Result, day string) []string {
	if s.badges == nil {
		return nil
	}

	snapshot, err := s.badgeSnapshot(ctx, userID, result, day)
	if err != nil {
		s.logger.Warn("badge snapshot failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	awarded, err := s.badges.EvaluateAndAward(ctx, userID, snapshot)
	if err != nil {
		s.logger.Warn("badge evaluation failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return awarded
}

func (s *Service) badgeSnapshot(ctx context.Context, userID string, result Result, day string) (badges.Snapshot, error) {
	snapshot := badges.Snapshot{
		Points:       result.TotalPoints,
		CaptureCount: result.CaptureCount,
		Streak:       result.Streak,
	}

	if snapshot.Streak == 0 {
		dates, err := recentScanDates(s.db.WithContext(ctx), userID, "")
		if err != nil {
			return badges.Snapshot{}, err
		}
		snapshot.Streak = streak.Compute(dates, day)
	}

	var rareCaught int64
	if err := s.db.WithContext(ctx).Model(&Scan{}).
		Where("user_id = ? AND outcome IN ? AND caught = ? AND points > 0",
			userID, []outcome.Kind{outcome.KindRainbow, outcome.KindGolden}, true).
		Count(&rareCaught).Error; err != nil {
		return badges.Snapshot{}, err
	}
	snapshot.CaughtRareTier = rareCaught > 0

	if err := s.db.WithContext(ctx).Model(&Scan{}).
		Distinct("scans.location_id").
		Joins("JOIN locations ON locations.id = scans.location_id AND locations.active = ?", true).
		Where("scans.user_id = ?", userID).
		Count(&snapshot.VisitedLocations).Error; err != nil {
		return badges.Snapshot{}, err
	}

	activeLocations, err := s.locations.CountActive(ctx)
	if err != nil {
		return badges.Snapshot{}, err
	}
	snapshot.ActiveLocations = activeLocations

	return snapshot, nil
}

// CurrentStreak returns the user's consecutive-day streak as of today.
func (s *Service) CurrentStreak(ctx context.Context, userID string) (int, error) {
	day := outcome.DateKey(s.clock(), s.zone)
	dates, err := recentScanDates(s.db.WithContext(ctx), userID, "")
	if err != nil {
		return 0, err
	}
	return streak.Compute(dates, day), nil
}

// recentScanDates returns the distinct scan dates within the recent window,
// excluding excludeDay when set.
func recentScanDates(db *gorm.DB, userID, excludeDay string) ([]string, error) {
	var recent []Scan
	query := db.Model(&Scan{}).
		Select("date").
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(recentScanWindow)
	if excludeDay != "" {
		query = query.Where("date <> ?", excludeDay)
	}
	if err := query.Find(&recent).Error; err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(recent))
	for _, scan := range recent {
		dates = append(dates, scan.Date)
	}
	return dates, nil
}

func scanReason(profile outcome.Profile, locationName string, caught bool) string {
	if caught {
		return fmt.Sprintf("Caught %s at %s", profile.DisplayName, locationName)
	}
	return fmt.Sprintf("%s escaped at %s", profile.DisplayName, locationName)
}
