package config

import (
	"os"
	"strings"
)

// FuzzyMerchantGrouping enables normalized + edit-distance merchant
// canonicalization in the recurring-pattern detector. Default is exact
// label matching; turning this on changes detector output.
//
// Set via env:
// - MERCHANT_FUZZY_GROUPING=true
func FuzzyMerchantGrouping() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("MERCHANT_FUZZY_GROUPING")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// MaterializerCronSpec is the in-process cron schedule for posting due
// recurring occurrences. Empty disables the background materializer
// (one-off runs remain available via cmd/recurring-materialize).
//
// Set via env:
// - RECURRING_MATERIALIZER_CRON="15 0 * * *"
func MaterializerCronSpec() string {
	return strings.TrimSpace(os.Getenv("RECURRING_MATERIALIZER_CRON"))
}
