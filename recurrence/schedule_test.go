package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence_AnchorOnOrAfterTodayIsReturnedUnchanged(t *testing.T) {
	anchor := date(2024, time.June, 15)
	today := date(2024, time.June, 1)

	for _, freq := range []Frequency{
		FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencySemiMonthly, FrequencyAnnually, FrequencyIrregular,
	} {
		got := NextOccurrence(anchor, freq, 1, today)
		if !got.Equal(anchor) {
			t.Fatalf("freq %s: expected anchor %v unchanged, got %v", freq, anchor, got)
		}
	}

	// anchor exactly today
	got := NextOccurrence(today, FrequencyMonthly, 1, today)
	if !got.Equal(today) {
		t.Fatalf("anchor == today: expected %v, got %v", today, got)
	}
}

func TestNextOccurrence_Weekly(t *testing.T) {
	cases := []struct {
		anchor, today, expected time.Time
		interval                int
	}{
		// step 14 days from Jan 1: 15, 29
		{date(2024, time.January, 1), date(2024, time.January, 20), date(2024, time.January, 29), 2},
		{date(2024, time.January, 1), date(2024, time.January, 2), date(2024, time.January, 8), 1},
		{date(2024, time.January, 1), date(2024, time.January, 8), date(2024, time.January, 8), 1},
	}
	for _, c := range cases {
		got := NextOccurrence(c.anchor, FrequencyWeekly, c.interval, c.today)
		if !got.Equal(c.expected) {
			t.Fatalf("weekly interval=%d anchor=%v today=%v: expected %v, got %v",
				c.interval, c.anchor, c.today, c.expected, got)
		}
	}
}

func TestNextOccurrence_Biweekly(t *testing.T) {
	got := NextOccurrence(date(2024, time.March, 4), FrequencyBiweekly, 1, date(2024, time.March, 10))
	if expected := date(2024, time.March, 18); !got.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestNextOccurrence_MonthlyEndOfMonthRollover(t *testing.T) {
	// Go's AddDate normalizes Jan 31 + 1 month to Mar 2 in a leap year
	// (Feb 31 -> Feb has 29 days -> overflow of 2). Pinned deliberately.
	got := NextOccurrence(date(2024, time.January, 31), FrequencyMonthly, 1, date(2024, time.February, 1))
	if expected := date(2024, time.March, 2); !got.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestNextOccurrence_MonthlyMidMonth(t *testing.T) {
	got := NextOccurrence(date(2024, time.April, 15), FrequencyMonthly, 1, date(2024, time.June, 1))
	if expected := date(2024, time.June, 15); !got.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}

	// interval 3: Apr 15 -> Jul 15
	got = NextOccurrence(date(2024, time.April, 15), FrequencyMonthly, 3, date(2024, time.May, 1))
	if expected := date(2024, time.July, 15); !got.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestNextOccurrence_SemiMonthly(t *testing.T) {
	cases := []struct {
		anchor, today, expected time.Time
	}{
		// day < 15 jumps to the 15th of the same month
		{date(2024, time.May, 10), date(2024, time.May, 12), date(2024, time.May, 15)},
		// day >= 15 jumps to the 1st of the next month
		{date(2024, time.May, 20), date(2024, time.May, 25), date(2024, time.June, 1)},
		// keeps alternating until >= today
		{date(2024, time.May, 1), date(2024, time.June, 2), date(2024, time.June, 15)},
		// year boundary
		{date(2023, time.December, 20), date(2023, time.December, 28), date(2024, time.January, 1)},
	}
	for _, c := range cases {
		got := NextOccurrence(c.anchor, FrequencySemiMonthly, 1, c.today)
		if !got.Equal(c.expected) {
			t.Fatalf("semi-monthly anchor=%v today=%v: expected %v, got %v",
				c.anchor, c.today, c.expected, got)
		}
	}
}

func TestNextOccurrence_AnnuallyLeapDay(t *testing.T) {
	// Feb 29 + 1 year normalizes to Mar 1 2025.
	got := NextOccurrence(date(2024, time.February, 29), FrequencyAnnually, 1, date(2024, time.June, 1))
	if expected := date(2025, time.March, 1); !got.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestNextOccurrence_IrregularFallsBackToTomorrow(t *testing.T) {
	today := date(2024, time.August, 10)
	got := NextOccurrence(date(2020, time.January, 1), FrequencyIrregular, 5, today)
	if expected := date(2024, time.August, 11); !got.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}

	got = NextOccurrence(date(2020, time.January, 1), Frequency("UNKNOWN"), 1, today)
	if expected := date(2024, time.August, 11); !got.Equal(expected) {
		t.Fatalf("unknown frequency: expected %v, got %v", expected, got)
	}
}

func TestNextOccurrence_InvalidIntervalTreatedAsOne(t *testing.T) {
	for _, interval := range []int{0, -3} {
		got := NextOccurrence(date(2024, time.January, 1), FrequencyWeekly, interval, date(2024, time.January, 2))
		if expected := date(2024, time.January, 8); !got.Equal(expected) {
			t.Fatalf("interval=%d: expected %v, got %v", interval, expected, got)
		}
	}
}

func TestNextOccurrence_DropsTimeOfDay(t *testing.T) {
	anchor := time.Date(2024, time.May, 1, 17, 30, 0, 0, time.UTC)
	today := time.Date(2024, time.May, 3, 9, 0, 0, 0, time.UTC)
	got := NextOccurrence(anchor, FrequencyWeekly, 1, today)
	if expected := date(2024, time.May, 8); !got.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestParseFrequency(t *testing.T) {
	if got := ParseFrequency("MONTHLY"); got != FrequencyMonthly {
		t.Fatalf("expected MONTHLY, got %s", got)
	}
	if got := ParseFrequency("UNKNOWN"); got != FrequencyIrregular {
		t.Fatalf("expected IRREGULAR for UNKNOWN, got %s", got)
	}
	if got := ParseFrequency("garbage"); got != FrequencyIrregular {
		t.Fatalf("expected IRREGULAR for garbage, got %s", got)
	}
}
