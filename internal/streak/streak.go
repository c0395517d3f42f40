// Package streak computes consecutive-day streaks.
//
// Day boundaries are calendar days (midnight to midnight) in a single
// canonical location, never a rolling 24h window.
package streak

import (
	"fmt"
	"time"

	"github.com/julianstephens/streakd/internal/constants"
)

// Next returns the streak after a completion at now.
//
// A first completion starts a streak of 1. A completion on the calendar day
// after lastCompletedAt extends the previous streak. Anything else (a gap of
// two or more days, or a last completion already today) starts over at 1.
func Next(previous int, lastCompletedAt *time.Time, now time.Time, loc *time.Location) int {
	if lastCompletedAt == nil {
		return 1
	}

	// compare dates, not midnights: midnight does not exist on some DST
	// transition days and time.Date normalizes it into the previous day
	y, m, d := now.In(loc).Date()
	yy, ym, yd := time.Date(y, m, d-1, 12, 0, 0, 0, loc).Date()
	ly, lm, ld := lastCompletedAt.In(loc).Date()

	if ly == yy && lm == ym && ld == yd {
		if previous < 0 {
			previous = 0
		}
		return previous + 1
	}
	return 1
}

// DayKey returns t's calendar day in loc as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(constants.DateFormat)
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}
