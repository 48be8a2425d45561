// Package streak derives consecutive-day scan streaks from sparse date sets.
package streak

import "time"

const dateLayout = "2006-01-02"

// Compute counts consecutive calendar days with at least one scan, ending at
// asOf or, when the user has not scanned on asOf, ending at the previous day.
// Dates are civil-day strings (YYYY-MM-DD); duplicates and ordering do not
// matter. The function is pure and side-effect free.
//
// Callers handling an in-flight first scan of the day compute on historical
// dates excluding today and add one for the scan being persisted.
func Compute(dates []string, asOf string) int {
	if len(dates) == 0 {
		return 0
	}

	anchor, err := time.Parse(dateLayout, asOf)
	if err != nil {
		return 0
	}

	seen := make(map[string]struct{}, len(dates))
	for _, date := range dates {
		seen[date] = struct{}{}
	}

	// The streak may end at asOf or at the day before it.
	if _, ok := seen[asOf]; !ok {
		anchor = anchor.AddDate(0, 0, -1)
		if _, ok := seen[anchor.Format(dateLayout)]; !ok {
			return 0
		}
	}

	count := 0
	for {
		if _, ok := seen[anchor.Format(dateLayout)]; !ok {
			return count
		}
		count++
		anchor = anchor.AddDate(0, 0, -1)
	}
}
