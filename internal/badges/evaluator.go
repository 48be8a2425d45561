package badges

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Badge identifiers referenced by the rule catalog.
const (
	BadgeFirstCapture  = "first-capture"
	BadgeCollector10   = "collector-10"
	BadgeCollector50   = "collector-50"
	BadgeCollector100  = "collector-100"
	BadgePoints100     = "points-100"
	BadgePoints500     = "points-500"
	BadgePoints1000    = "points-1000"
	BadgeRainbowHunter = "rainbow-hunter"
	BadgeGlobetrotter  = "globetrotter"
	BadgeStreak3       = "streak-3"
	BadgeStreak7       = "streak-7"
	BadgeStreak30      = "streak-30"
)

var (
	errMissingEvaluatorDatabase = errors.New("badges: database handle is required")
	errMissingEvaluatorUserID   = errors.New("badges: user identifier is required")

	noOpLogger = zap.NewNop()
)

// Catalog lists every badge the evaluator can award. Seeded into the badges
// table at startup.
var Catalog = []Badge{
	{ID: BadgeFirstCapture, Name: "First Capture", Description: "Caught your first character"},
	{ID: BadgeCollector10, Name: "Collector", Description: "Caught 10 characters"},
	{ID: BadgeCollector50, Name: "Serious Collector", Description: "Caught 50 characters"},
	{ID: BadgeCollector100, Name: "Master Collector", Description: "Caught 100 characters"},
	{ID: BadgePoints100, Name: "Pocket Money", Description: "Reached 100 points"},
	{ID: BadgePoints500, Name: "Saver", Description: "Reached 500 points"},
	{ID: BadgePoints1000, Name: "Tycoon", Description: "Reached 1000 points"},
	{ID: BadgeRainbowHunter, Name: "Rainbow Hunter", Description: "Caught a rare-tier character"},
	{ID: BadgeGlobetrotter, Name: "Globetrotter", Description: "Visited every active location"},
	{ID: BadgeStreak3, Name: "Regular", Description: "Scanned 3 days in a row"},
	{ID: BadgeStreak7, Name: "Devoted", Description: "Scanned 7 days in a row"},
	{ID: BadgeStreak30, Name: "Campus Legend", Description: "Scanned 30 days in a row"},
}

// Snapshot carries the aggregate state the rules test against. The caller
// assembles it so this package stays independent of scan storage.
type Snapshot struct {
	Points           int64
	CaptureCount     int64
	Streak           int
	CaughtRareTier   bool
	VisitedLocations int64
	ActiveLocations  int64
}

type rule struct {
	badgeID   string
	qualifies func(Snapshot) bool
}

var rules = []rule{
	{BadgeFirstCapture, func(s Snapshot) bool { return s.CaptureCount >= 1 }},
	{BadgeCollector10, func(s Snapshot) bool { return s.CaptureCount >= 10 }},
	{BadgeCollector50, func(s Snapshot) bool { return s.CaptureCount >= 50 }},
	{BadgeCollector100, func(s Snapshot) bool { return s.CaptureCount >= 100 }},
	{BadgePoints100, func(s Snapshot) bool { return s.Points >= 100 }},
	{BadgePoints500, func(s Snapshot) bool { return s.Points >= 500 }},
	{BadgePoints1000, func(s Snapshot) bool { return s.Points >= 1000 }},
	{BadgeRainbowHunter, func(s Snapshot) bool { return s.CaughtRareTier }},
	{BadgeGlobetrotter, func(s Snapshot) bool { return s.ActiveLocations > 0 && s.VisitedLocations >= s.ActiveLocations }},
	{BadgeStreak3, func(s Snapshot) bool { return s.Streak >= 3 }},
	{BadgeStreak7, func(s Snapshot) bool { return s.Streak >= 7 }},
	{BadgeStreak30, func(s Snapshot) bool { return s.Streak >= 30 }},
}

// EvaluatorConfig describes the dependencies of the badge evaluator.
type EvaluatorConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Evaluator awards newly-satisfied milestone badges. Safe to call after every
// scan: earned badges are frozen and never re-awarded.
type Evaluator struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEvaluator constructs the badge evaluator.
func NewEvaluator(cfg EvaluatorConfig) (*Evaluator, error) {
	if cfg.Database == nil {
		return nil, errMissingEvaluatorDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Evaluator{db: cfg.Database, logger: logger}, nil
}

// EvaluateAndAward tests the rule catalog against the snapshot and inserts all
// newly-qualifying awards in one conflict-safe batch. Returns the badge ids
// awarded by this call.
func (e *Evaluator) EvaluateAndAward(ctx context.Context, userID string, snapshot Snapshot) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errMissingEvaluatorUserID
	}

	var earnedIDs []string
	if err := e.db.WithContext(ctx).
		Model(&UserBadge{}).
		Where("user_id = ?", userID).
		Pluck("badge_id", &earnedIDs).Error; err != nil {
		return nil, err
	}
	earned := make(map[string]struct{}, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = struct{}{}
	}

	var awards []UserBadge
	var awardedIDs []string
	for _, candidate := range rules {
		if _, already := earned[candidate.badgeID]; already {
			continue
		}
		if !candidate.qualifies(snapshot) {
			continue
		}
		awards = append(awards, UserBadge{UserID: userID, BadgeID: candidate.badgeID})
		awardedIDs = append(awardedIDs, candidate.badgeID)
	}

	if len(awards) == 0 {
		return nil, nil
	}

	// A concurrent duplicate award attempt must no-op, not error.
	if err := e.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&awards).Error; err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	e.logger.Info("badges awarded",
		zap.String("user_id", userID),
		zap.Strings("badge_ids", awardedIDs))

	return awardedIDs, nil
}

// Earned returns the badge ids already awarded to the user.
func (e *Evaluator) Earned(ctx context.Context, userID string) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errMissingEvaluatorUserID
	}
	var earnedIDs []string
	if err := e.db.WithContext(ctx).
		Model(&UserBadge{}).
		Where("user_id = ?", userID).
		Order("awarded_at ASC").
		Pluck("badge_id", &earnedIDs).Error; err != nil {
		return nil, err
	}
	return earnedIDs, nil
}
