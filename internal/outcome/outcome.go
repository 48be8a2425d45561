package outcome

import "time"

// Kind identifies a character tier revealed by a scan.
type Kind string

const (
	// KindJaileon is the common character.
	KindJaileon Kind = "jaileon"
	// KindRainbow is the rare daily-spawn character.
	KindRainbow Kind = "rainbow"
	// KindBird is the filler character. Catching it never counts toward
	// capture totals.
	KindBird Kind = "bird"
	// KindGolden is the time-gated character granted by the morning window.
	// It never appears as a daily spawn.
	KindGolden Kind = "golden"
)

// Profile fixes the gameplay constants for one character tier.
type Profile struct {
	Kind         Kind
	DisplayName  string
	CatchRate    float64
	CatchPoints  int64
	EscapePoints int64
	Filler       bool
}

var profiles = map[Kind]Profile{
	KindJaileon: {
		Kind:         KindJaileon,
		DisplayName:  "Jaileon",
		CatchRate:    0.50,
		CatchPoints:  20,
		EscapePoints: 5,
	},
	KindRainbow: {
		Kind:         KindRainbow,
		DisplayName:  "Rainbow Jaileon",
		CatchRate:    0.35,
		CatchPoints:  80,
		EscapePoints: 10,
	},
	KindBird: {
		Kind:         KindBird,
		DisplayName:  "Campus Bird",
		CatchRate:    1.0,
		CatchPoints:  5,
		EscapePoints: 0,
		Filler:       true,
	},
	KindGolden: {
		Kind:         KindGolden,
		DisplayName:  "Golden Jaileon",
		CatchRate:    1.0,
		CatchPoints:  100,
		EscapePoints: 0,
	},
}

// ProfileFor returns the profile for a character tier.
func ProfileFor(kind Kind) (Profile, bool) {
	profile, ok := profiles[kind]
	return profile, ok
}

// DateKey formats a moment as the calendar day in the operator's civil time
// zone. All per-day uniqueness (scans, daily spawns, streaks) keys on it.
func DateKey(moment time.Time, zone *time.Location) string {
	return moment.In(zone).Format("2006-01-02")
}

// GoldenWindow is the fixed early-morning interval during which a user's first
// scan of the day is overridden to the golden character. It is a pure
// time-of-day rule with no persisted state.
type GoldenWindow struct {
	StartHour int
	EndHour   int
	Zone      *time.Location
}

// Contains reports whether the moment falls inside the window, evaluated in
// the operator's civil time zone.
func (w GoldenWindow) Contains(moment time.Time) bool {
	if w.Zone != nil {
		moment = moment.In(w.Zone)
	}
	hour := moment.Hour()
	return hour >= w.StartHour && hour < w.EndHour
}
