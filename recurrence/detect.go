package recurrence

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Txn is the slice of an imported transaction the detector needs.
type Txn struct {
	ID           int
	Name         string
	MerchantName string
	Date         time.Time
	Amount       decimal.Decimal
}

// DetectOptions tunes a detection run. Zero Now means time.Now().
type DetectOptions struct {
	MinConfidence  float64
	MinOccurrences int
	LookbackDays   int
	Now            time.Time
	// FuzzyMerchants groups normalized labels by edit distance instead of
	// exact string equality. Changes output; off by default.
	FuzzyMerchants bool
}

// Proposal is a detected recurring series. Nothing is persisted; callers
// accept a proposal by creating a RecurringTransaction from it.
type Proposal struct {
	Merchant       string
	AvgAmount      decimal.Decimal
	Frequency      Frequency
	Interval       int
	DayOfMonth     *int
	DayOfWeek      *int
	Confidence     float64
	IsVariable     bool
	TransactionIDs []int
	StartDate      time.Time
	NextDate       time.Time
}

// relative amount deviation above which a series is flagged variable
const variableAmountThreshold = 0.05

// interval spread (relative to mean) at which confidence reaches zero
const confidenceSpreadFactor = 0.3

// Detect proposes recurring series from raw transactions.
//
// Groups are keyed on merchant label (merchant name when present, else the
// raw transaction name). Confidence is 1 minus the population standard
// deviation of the day gaps relative to 30% of their mean, clamped to
// [0,1]: perfectly even spacing scores 1, spacing looser than 30% relative
// deviation scores 0. Groups below opts.MinConfidence are dropped, not
// reported as errors.
//
// A group with only two occurrences has a single gap, so its deviation is
// trivially zero and its confidence trivially 1 regardless of true
// periodicity. Callers wanting meaningful confidence should require at
// least three occurrences.
func Detect(txns []Txn, opts DetectOptions) []Proposal {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = dateOnly(now)

	minOcc := opts.MinOccurrences
	if minOcc < 2 {
		minOcc = 2
	}

	cutoff := now.AddDate(0, 0, -opts.LookbackDays)

	groups := make(map[string][]Txn)
	labels := make(map[string]string)
	var canon *merchantCanonicalizer
	if opts.FuzzyMerchants {
		canon = newMerchantCanonicalizer()
	}
	for _, t := range txns {
		if t.Date.Before(cutoff) || t.Date.After(now) {
			continue
		}
		label := t.MerchantName
		if label == "" {
			label = t.Name
		}
		if label == "" {
			continue
		}
		key := label
		if canon != nil {
			key = canon.keyFor(label)
		}
		groups[key] = append(groups[key], t)
		if _, ok := labels[key]; !ok {
			labels[key] = label
		}
	}

	proposals := make([]Proposal, 0, len(groups))
	for key, group := range groups {
		if len(group) < minOcc {
			continue
		}

		sort.Slice(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })

		intervals := make([]float64, 0, len(group)-1)
		for i := 1; i < len(group); i++ {
			gap := dateOnly(group[i].Date).Sub(dateOnly(group[i-1].Date)).Hours() / 24
			intervals = append(intervals, gap)
		}

		avgInterval := mean(intervals)
		if avgInterval <= 0 {
			// same-day duplicates, not a schedule
			continue
		}
		stdDev := popStdDev(intervals, avgInterval)

		confidence := 1 - stdDev/(avgInterval*confidenceSpreadFactor)
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		if confidence < opts.MinConfidence {
			continue
		}

		freq, interval := classifyInterval(avgInterval)

		amounts := make([]float64, len(group))
		total := decimal.Zero
		for i, t := range group {
			amounts[i] = t.Amount.InexactFloat64()
			total = total.Add(t.Amount)
		}
		avgAmount := total.Div(decimal.NewFromInt(int64(len(group))))
		amountMean := mean(amounts)
		amountStdDev := popStdDev(amounts, amountMean)
		isVariable := false
		if abs := math.Abs(amountMean); abs > 0 {
			isVariable = amountStdDev/abs > variableAmountThreshold
		} else {
			isVariable = amountStdDev > 0
		}

		last := group[len(group)-1]
		ids := make([]int, len(group))
		for i, t := range group {
			ids[i] = t.ID
		}

		p := Proposal{
			Merchant:       labels[key],
			AvgAmount:      avgAmount,
			Frequency:      freq,
			Interval:       interval,
			Confidence:     confidence,
			IsVariable:     isVariable,
			TransactionIDs: ids,
			StartDate:      dateOnly(group[0].Date),
			NextDate:       NextOccurrence(last.Date, freq, interval, now),
		}
		switch freq {
		case FrequencyMonthly, FrequencySemiMonthly, FrequencyAnnually:
			d := last.Date.Day()
			p.DayOfMonth = &d
		case FrequencyWeekly, FrequencyBiweekly:
			d := int(last.Date.Weekday())
			p.DayOfWeek = &d
		}

		proposals = append(proposals, p)
	}

	sort.Slice(proposals, func(i, j int) bool { return proposals[i].Merchant < proposals[j].Merchant })
	return proposals
}

// classifyInterval maps a mean day gap onto a frequency. The fixed bands
// overlap (BIWEEKLY [12,16] vs SEMI_MONTHLY [13,15]); evaluation order is
// MONTHLY, SEMI_MONTHLY, BIWEEKLY, WEEKLY, ANNUALLY, first match wins.
// Outside every band the nearest unit is chosen and the interval becomes
// the rounded multiple of that unit.
func classifyInterval(avg float64) (Frequency, int) {
	switch {
	case avg >= 25 && avg <= 35:
		return FrequencyMonthly, 1
	case avg >= 13 && avg <= 15:
		return FrequencySemiMonthly, 1
	case avg >= 12 && avg <= 16:
		return FrequencyBiweekly, 1
	case avg >= 6 && avg <= 8:
		return FrequencyWeekly, 1
	case avg >= 350 && avg <= 380:
		return FrequencyAnnually, 1
	}

	var freq Frequency
	var unit float64
	switch {
	case avg > 90:
		freq, unit = FrequencyAnnually, 365
	case avg > 21:
		freq, unit = FrequencyMonthly, 30
	case avg > 10:
		freq, unit = FrequencyBiweekly, 14
	default:
		freq, unit = FrequencyWeekly, 7
	}
	interval := int(math.Round(avg / unit))
	if interval < 1 {
		interval = 1
	}
	return freq, interval
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// population standard deviation
func popStdDev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
