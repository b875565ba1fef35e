package recurrence

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// edit distance at or below which two normalized labels are the same merchant
const merchantDistanceThreshold = 2

// merchantCanonicalizer folds minor label variations ("NETFLIX.COM 8841",
// "Netflix.com") onto one canonical key. Normalization strips case,
// punctuation and trailing digit runs (card/transaction suffixes); what
// survives is matched against previously seen keys by edit distance.
type merchantCanonicalizer struct {
	seen []string
}

func newMerchantCanonicalizer() *merchantCanonicalizer {
	return &merchantCanonicalizer{}
}

func (c *merchantCanonicalizer) keyFor(label string) string {
	norm := NormalizeMerchantLabel(label)
	if norm == "" {
		return label
	}
	for _, k := range c.seen {
		if k == norm {
			return k
		}
		if levenshtein.ComputeDistance(k, norm) <= merchantDistanceThreshold {
			return k
		}
	}
	c.seen = append(c.seen, norm)
	return norm
}

// NormalizeMerchantLabel lowercases, drops punctuation, collapses spaces
// and removes trailing all-digit tokens.
func NormalizeMerchantLabel(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	var b strings.Builder
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	// trailing digit runs are almost always reference numbers
	for len(fields) > 0 && isAllDigits(fields[len(fields)-1]) {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
