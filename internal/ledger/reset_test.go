package ledger

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	for _, raw := range []string{"daily", "weekly", "monthly"} {
		if _, err := ParsePeriod(raw); err != nil {
			t.Fatalf("expected %q to parse, got %v", raw, err)
		}
	}
	if _, err := ParsePeriod("hourly"); err == nil {
		t.Fatal("expected error for unknown period")
	}
}

func TestResetDue(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		last   time.Time
		period Period
		want   bool
	}{
		{"daily same day", time.Date(2025, time.March, 15, 0, 30, 0, 0, time.UTC), PeriodDaily, false},
		{"daily previous day", time.Date(2025, time.March, 14, 23, 59, 0, 0, time.UTC), PeriodDaily, true},
		{"daily previous year same date", time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC), PeriodDaily, true},
		{"weekly same iso week", time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), PeriodWeekly, false},
		{"weekly previous week", time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC), PeriodWeekly, true},
		{"monthly same month", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), PeriodMonthly, false},
		{"monthly previous month", time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), PeriodMonthly, true},
		{"monthly same month previous year", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), PeriodMonthly, true},
	}
	for _, tc := range cases {
		got := resetDue(tc.last.Format(time.RFC3339), now, tc.period)
		if got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestResetDue_UnparseableTimestamp(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	if !resetDue("not-a-timestamp", now, PeriodDaily) {
		t.Fatal("expected unparseable timestamp to count as due")
	}
	if !resetDue("", now, PeriodMonthly) {
		t.Fatal("expected empty timestamp to count as due")
	}
}
