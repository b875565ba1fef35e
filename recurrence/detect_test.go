package recurrence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func txnsEvery(name string, start time.Time, gapDays, n int, amount string) []Txn {
	amt := decimal.RequireFromString(amount)
	out := make([]Txn, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Txn{
			ID:     i + 1,
			Name:   name,
			Date:   start.AddDate(0, 0, i*gapDays),
			Amount: amt,
		})
	}
	return out
}

func TestDetect_MonthlySubscription(t *testing.T) {
	now := date(2024, time.April, 10)
	txns := txnsEvery("Netflix", date(2024, time.January, 5), 30, 3, "-15.99")

	got := Detect(txns, DetectOptions{
		MinConfidence:  0.7,
		MinOccurrences: 2,
		LookbackDays:   365,
		Now:            now,
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(got))
	}
	p := got[0]
	if p.Merchant != "Netflix" {
		t.Fatalf("expected merchant Netflix, got %q", p.Merchant)
	}
	if p.Frequency != FrequencyMonthly || p.Interval != 1 {
		t.Fatalf("expected MONTHLY interval 1, got %s interval %d", p.Frequency, p.Interval)
	}
	if p.Confidence != 1 {
		t.Fatalf("zero-deviation gaps: expected confidence 1, got %v", p.Confidence)
	}
	if p.IsVariable {
		t.Fatal("constant amount must not be flagged variable")
	}
	if !p.AvgAmount.Equal(decimal.RequireFromString("-15.99")) {
		t.Fatalf("expected avg amount -15.99, got %s", p.AvgAmount)
	}
	if !p.StartDate.Equal(date(2024, time.January, 5)) {
		t.Fatalf("expected start date Jan 5, got %v", p.StartDate)
	}
	if len(p.TransactionIDs) != 3 {
		t.Fatalf("expected 3 contributing ids, got %v", p.TransactionIDs)
	}
	if p.DayOfMonth == nil || *p.DayOfMonth != 5 {
		t.Fatalf("expected day-of-month 5, got %v", p.DayOfMonth)
	}
	// anchored at last txn (Mar 5), advanced monthly past Apr 10
	if expected := date(2024, time.May, 5); !p.NextDate.Equal(expected) {
		t.Fatalf("expected next date %v, got %v", expected, p.NextDate)
	}
}

func TestDetect_IrregularSpacingScoresBelowPerfect(t *testing.T) {
	now := date(2024, time.April, 1)
	txns := []Txn{
		{ID: 1, Name: "Random Store", Date: date(2024, time.January, 1), Amount: decimal.RequireFromString("-40")},
		{ID: 2, Name: "Random Store", Date: date(2024, time.January, 11), Amount: decimal.RequireFromString("-40")},
		{ID: 3, Name: "Random Store", Date: date(2024, time.March, 11), Amount: decimal.RequireFromString("-40")},
	}

	// gaps 10 and 60: relative deviation far above 30%, dropped at 0.7
	got := Detect(txns, DetectOptions{MinConfidence: 0.7, MinOccurrences: 3, LookbackDays: 365, Now: now})
	if len(got) != 0 {
		t.Fatalf("expected high-variance group dropped, got %v", got)
	}

	// with the floor removed it must surface, strictly below 1
	got = Detect(txns, DetectOptions{MinConfidence: 0, MinOccurrences: 3, LookbackDays: 365, Now: now})
	if len(got) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(got))
	}
	if got[0].Confidence >= 1 {
		t.Fatalf("expected confidence < 1, got %v", got[0].Confidence)
	}
}

func TestDetect_MinOccurrencesPrunesSmallGroups(t *testing.T) {
	now := date(2024, time.April, 1)
	txns := txnsEvery("Gym", date(2024, time.February, 1), 30, 2, "-29.99")

	got := Detect(txns, DetectOptions{MinConfidence: 0.5, MinOccurrences: 3, LookbackDays: 365, Now: now})
	if len(got) != 0 {
		t.Fatalf("expected group below minimum occurrences dropped, got %v", got)
	}

	// two occurrences with exactly one gap: deviation is trivially zero,
	// confidence trivially 1 (known single-sample artifact)
	got = Detect(txns, DetectOptions{MinConfidence: 0.99, MinOccurrences: 2, LookbackDays: 365, Now: now})
	if len(got) != 1 || got[0].Confidence != 1 {
		t.Fatalf("expected single-gap group at confidence 1, got %v", got)
	}
}

func TestDetect_LookbackWindowFiltersOldTransactions(t *testing.T) {
	now := date(2024, time.June, 1)
	old := txnsEvery("Old Paper", date(2022, time.January, 1), 30, 6, "-10")

	got := Detect(old, DetectOptions{MinConfidence: 0.5, MinOccurrences: 2, LookbackDays: 90, Now: now})
	if len(got) != 0 {
		t.Fatalf("expected everything outside lookback dropped, got %v", got)
	}
}

func TestDetect_BandOrderResolvesOverlap(t *testing.T) {
	// 13.5-day mean gap sits in both SEMI_MONTHLY [13,15] and BIWEEKLY
	// [12,16]; SEMI_MONTHLY is checked first.
	now := date(2024, time.June, 1)
	txns := []Txn{
		{ID: 1, Name: "Payroll", Date: date(2024, time.April, 1), Amount: decimal.RequireFromString("1500")},
		{ID: 2, Name: "Payroll", Date: date(2024, time.April, 14), Amount: decimal.RequireFromString("1500")},
		{ID: 3, Name: "Payroll", Date: date(2024, time.April, 28), Amount: decimal.RequireFromString("1500")},
	}
	got := Detect(txns, DetectOptions{MinConfidence: 0, MinOccurrences: 3, LookbackDays: 365, Now: now})
	if len(got) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(got))
	}
	if got[0].Frequency != FrequencySemiMonthly {
		t.Fatalf("expected SEMI_MONTHLY from band order, got %s", got[0].Frequency)
	}

	// a 12-day mean gap is only inside BIWEEKLY
	txns = txnsEvery("Cleaner", date(2024, time.April, 1), 12, 3, "-80")
	got = Detect(txns, DetectOptions{MinConfidence: 0, MinOccurrences: 3, LookbackDays: 365, Now: now})
	if len(got) != 1 || got[0].Frequency != FrequencyBiweekly {
		t.Fatalf("expected BIWEEKLY, got %v", got)
	}
	if got[0].DayOfWeek == nil {
		t.Fatal("expected day-of-week on a biweekly proposal")
	}
}

func TestDetect_BestFitOutsideBands(t *testing.T) {
	now := date(2025, time.June, 1)

	// ~60-day gaps: outside all bands, >21 -> MONTHLY with interval 2
	txns := txnsEvery("Quarterly-ish", date(2024, time.June, 1), 60, 4, "-120")
	got := Detect(txns, DetectOptions{MinConfidence: 0, MinOccurrences: 3, LookbackDays: 400, Now: now})
	if len(got) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(got))
	}
	if got[0].Frequency != FrequencyMonthly || got[0].Interval != 2 {
		t.Fatalf("expected MONTHLY interval 2, got %s interval %d", got[0].Frequency, got[0].Interval)
	}

	// ~120-day gaps: >90 -> ANNUALLY with interval round(120/365)=0 -> floored to 1
	txns = txnsEvery("Rare Fee", date(2024, time.June, 1), 120, 3, "-300")
	got = Detect(txns, DetectOptions{MinConfidence: 0, MinOccurrences: 3, LookbackDays: 400, Now: now})
	if len(got) != 1 || got[0].Frequency != FrequencyAnnually || got[0].Interval != 1 {
		t.Fatalf("expected ANNUALLY interval 1, got %v", got)
	}
}

func TestDetect_AmountVariabilityFlag(t *testing.T) {
	now := date(2024, time.May, 1)
	txns := []Txn{
		{ID: 1, Name: "Power Co", Date: date(2024, time.January, 2), Amount: decimal.RequireFromString("-80")},
		{ID: 2, Name: "Power Co", Date: date(2024, time.February, 1), Amount: decimal.RequireFromString("-120")},
		{ID: 3, Name: "Power Co", Date: date(2024, time.March, 2), Amount: decimal.RequireFromString("-95")},
	}
	got := Detect(txns, DetectOptions{MinConfidence: 0, MinOccurrences: 3, LookbackDays: 365, Now: now})
	if len(got) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(got))
	}
	if !got[0].IsVariable {
		t.Fatal("fluctuating utility bill must be flagged variable")
	}
}

func TestDetect_MerchantNamePreferredOverRawName(t *testing.T) {
	now := date(2024, time.May, 1)
	txns := []Txn{
		{ID: 1, Name: "POS 8841 NETFLIX", MerchantName: "Netflix", Date: date(2024, time.February, 5), Amount: decimal.RequireFromString("-15.99")},
		{ID: 2, Name: "POS 9112 NETFLIX", MerchantName: "Netflix", Date: date(2024, time.March, 6), Amount: decimal.RequireFromString("-15.99")},
		{ID: 3, Name: "POS 0233 NETFLIX", MerchantName: "Netflix", Date: date(2024, time.April, 5), Amount: decimal.RequireFromString("-15.99")},
	}
	got := Detect(txns, DetectOptions{MinConfidence: 0.5, MinOccurrences: 3, LookbackDays: 365, Now: now})
	if len(got) != 1 || got[0].Merchant != "Netflix" {
		t.Fatalf("expected one Netflix group, got %v", got)
	}
}

func TestDetect_FuzzyMerchantGrouping(t *testing.T) {
	now := date(2024, time.May, 1)
	txns := []Txn{
		{ID: 1, Name: "NETFLIX.COM 8841", Date: date(2024, time.February, 5), Amount: decimal.RequireFromString("-15.99")},
		{ID: 2, Name: "Netflix.com 9112", Date: date(2024, time.March, 5), Amount: decimal.RequireFromString("-15.99")},
		{ID: 3, Name: "NETFLIX COM", Date: date(2024, time.April, 4), Amount: decimal.RequireFromString("-15.99")},
	}

	// exact matching fragments the series
	got := Detect(txns, DetectOptions{MinConfidence: 0.5, MinOccurrences: 3, LookbackDays: 365, Now: now})
	if len(got) != 0 {
		t.Fatalf("exact grouping: expected fragmented groups below minimum, got %v", got)
	}

	got = Detect(txns, DetectOptions{MinConfidence: 0.5, MinOccurrences: 3, LookbackDays: 365, Now: now, FuzzyMerchants: true})
	if len(got) != 1 {
		t.Fatalf("fuzzy grouping: expected 1 merged group, got %d", len(got))
	}
	if len(got[0].TransactionIDs) != 3 {
		t.Fatalf("expected all 3 transactions in the merged group, got %v", got[0].TransactionIDs)
	}
}

func TestNormalizeMerchantLabel(t *testing.T) {
	cases := []struct{ in, expected string }{
		{"NETFLIX.COM 8841", "netflix com"},
		{"  Spotify AB  ", "spotify ab"},
		{"ACME*CORP 123 456", "acme corp"},
		{"7-Eleven", "7 eleven"},
	}
	for _, c := range cases {
		if got := NormalizeMerchantLabel(c.in); got != c.expected {
			t.Fatalf("NormalizeMerchantLabel(%q) expected %q, got %q", c.in, c.expected, got)
		}
	}
}
