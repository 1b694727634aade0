package ledger

import (
	"fmt"
	"time"
)

// Period selects the calendar window after which counters zero.
type Period string

// Supported reset periods.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod validates a period name from configuration.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return Period(raw), nil
	}
	return "", fmt.Errorf("ledger: unknown reset period %q", raw)
}

// resetDue reports whether a record last reset at the serialized timestamp
// has crossed a calendar boundary relative to now. The comparison is against
// calendar boundaries, not elapsed duration: a daily reset fires at date
// rollover regardless of how many hours have passed.
//
// An unparseable timestamp counts as due, so corrupt state resets a record
// rather than granting it an eternal window.
func resetDue(lastReset string, now time.Time, period Period) bool {
	last, errParse := time.Parse(time.RFC3339, lastReset)
	if errParse != nil {
		return true
	}
	last = last.In(now.Location())

	switch period {
	case PeriodDaily:
		ly, lm, ld := last.Date()
		ny, nm, nd := now.Date()
		return ly != ny || lm != nm || ld != nd
	case PeriodWeekly:
		ly, lw := last.ISOWeek()
		ny, nw := now.ISOWeek()
		return ly != ny || lw != nw
	case PeriodMonthly:
		return last.Year() != now.Year() || last.Month() != now.Month()
	}
	return false
}
