// Package recurrence implements the recurring-payment engine: calendar
// scheduling of next occurrences and detection of recurring series in raw
// transaction history. It is pure computation; persistence and transport
// live in the models/workflow packages.
package recurrence

import "time"

// Frequency classifies how often a recurring series fires.
type Frequency string

const (
	FrequencyWeekly      Frequency = "WEEKLY"
	FrequencyBiweekly    Frequency = "BIWEEKLY"
	FrequencyMonthly     Frequency = "MONTHLY"
	FrequencySemiMonthly Frequency = "SEMI_MONTHLY"
	FrequencyAnnually    Frequency = "ANNUALLY"
	FrequencyIrregular   Frequency = "IRREGULAR"
)

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextOccurrence returns the next date on/after today at which a series
// anchored at anchor fires. Comparison is at date granularity; time-of-day
// on the inputs is discarded.
//
// Recurring series are defined against a calendar anchor ("the 15th of
// every month"), not "N days since last occurrence", so monthly and annual
// steps use calendar-unit arithmetic. Go's AddDate normalizes overflowing
// days (Jan 31 + 1 month = Mar 2 in a leap year); callers that need
// end-of-month clamping must anchor on a day that exists in every month.
//
// interval below 1 is treated as 1. SEMI_MONTHLY alternates between the
// 1st and the 15th and ignores interval. Unknown frequencies schedule for
// tomorrow.
func NextOccurrence(anchor time.Time, freq Frequency, interval int, today time.Time) time.Time {
	if interval < 1 {
		interval = 1
	}
	anchor = dateOnly(anchor)
	today = dateOnly(today)

	if !anchor.Before(today) {
		return anchor
	}

	switch freq {
	case FrequencyWeekly:
		for anchor.Before(today) {
			anchor = anchor.AddDate(0, 0, 7*interval)
		}
	case FrequencyBiweekly:
		for anchor.Before(today) {
			anchor = anchor.AddDate(0, 0, 14*interval)
		}
	case FrequencyMonthly:
		for anchor.Before(today) {
			anchor = anchor.AddDate(0, interval, 0)
		}
	case FrequencySemiMonthly:
		for anchor.Before(today) {
			if anchor.Day() < 15 {
				anchor = time.Date(anchor.Year(), anchor.Month(), 15, 0, 0, 0, 0, anchor.Location())
			} else {
				anchor = time.Date(anchor.Year(), anchor.Month()+1, 1, 0, 0, 0, 0, anchor.Location())
			}
		}
	case FrequencyAnnually:
		for anchor.Before(today) {
			anchor = anchor.AddDate(interval, 0, 0)
		}
	default:
		return today.AddDate(0, 0, 1)
	}

	return anchor
}

// ParseFrequency maps stored strings onto the enum, falling back to
// IRREGULAR for anything unrecognized (including the legacy "UNKNOWN").
func ParseFrequency(s string) Frequency {
	switch Frequency(s) {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencySemiMonthly, FrequencyAnnually:
		return Frequency(s)
	default:
		return FrequencyIrregular
	}
}
