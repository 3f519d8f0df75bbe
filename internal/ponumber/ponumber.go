// Package ponumber formats and parses the human-readable purchase order
// identifiers (e.g. GI/PO/25-26/EG-003). Sequence allocation itself is
// transactional and lives in the order repository; this package owns the
// pure string work around it.
package ponumber

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Scheme carries the numbering configuration injected at construction:
// the org prefix, the floor for the generic sequence, and the buyer-code
// lookup table.
type Scheme struct {
	Prefix       string
	GenericFloor int64
	BuyerCodes   map[string]string
}

// Existing pairs a stored identifier with the buyer it belongs to, the
// inputs of the counter seeding scan.
type Existing struct {
	Number string
	Buyer  string
}

// Code derives the short buyer code: the configured lookup wins, otherwise
// the first two letters of the buyer name, uppercased.
func (s Scheme) Code(buyer string) string {
	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return ""
	}
	for name, code := range s.BuyerCodes {
		if strings.EqualFold(name, buyer) {
			return strings.ToUpper(code)
		}
	}
	var letters []rune
	for _, r := range buyer {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
			if len(letters) == 2 {
				break
			}
		}
	}
	return string(letters)
}

// YearRange renders the fiscal year span ("25-26") the identifier is scoped
// to. The fiscal year rolls over in April.
func YearRange(now time.Time) string {
	y := now.Year()
	if now.Month() < time.April {
		y--
	}
	return fmt.Sprintf("%02d-%02d", y%100, (y+1)%100)
}

// ForBuyer composes a buyer-scoped identifier: PREFIX/PO/<years>/<CODE>-<seq>
// with the sequence zero-padded to three digits.
func (s Scheme) ForBuyer(now time.Time, buyer string, seq int64) string {
	return fmt.Sprintf("%s/PO/%s/%s-%03d", s.Prefix, YearRange(now), s.Code(buyer), seq)
}

// Generic composes an unscoped identifier: PREFIX/PO/<years>/<seq>.
func (s Scheme) Generic(now time.Time, seq int64) string {
	return fmt.Sprintf("%s/PO/%s/%d", s.Prefix, YearRange(now), seq)
}

var (
	trailingSeqRe = regexp.MustCompile(`/(\d+)$`)
	trailingNumRe = regexp.MustCompile(`(\d+)$`)
)

// MaxGenericSeq scans existing identifiers for the trailing ".../<integer>"
// pattern and returns the highest sequence seen, or 0.
func MaxGenericSeq(numbers []string) int64 {
	var max int64
	for _, n := range numbers {
		m := trailingSeqRe.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max
}

// MaxBuyerSeq scans existing orders for a "<CODE>-<seq>" identifier suffix
// and returns the highest sequence seen for that code, or 0. Orders that
// belong to the named buyer also count through their trailing integer even
// when the identifier predates buyer codes, so legacy numbering still
// occupies the range.
func MaxBuyerSeq(existing []Existing, code, buyer string) int64 {
	if code == "" {
		return 0
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(code) + `-(\d+)$`)
	buyer = strings.TrimSpace(buyer)

	var max int64
	for _, rec := range existing {
		m := re.FindStringSubmatch(rec.Number)
		if m == nil && buyer != "" && strings.EqualFold(strings.TrimSpace(rec.Buyer), buyer) {
			m = trailingNumRe.FindStringSubmatch(rec.Number)
		}
		if m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max
}

// SeedGeneric computes the first generic sequence for an org with no counter
// row yet: one past the highest existing identifier, floored at the
// configured start.
func (s Scheme) SeedGeneric(existing []Existing) int64 {
	numbers := make([]string, 0, len(existing))
	for _, rec := range existing {
		numbers = append(numbers, rec.Number)
	}
	max := MaxGenericSeq(numbers)
	if max < s.GenericFloor {
		max = s.GenericFloor
	}
	return max + 1
}

// SeedBuyer computes the first buyer-scoped sequence: one past the highest
// existing sequence for the buyer's code or the buyer's own legacy orders.
func (s Scheme) SeedBuyer(existing []Existing, buyer string) int64 {
	return MaxBuyerSeq(existing, s.Code(buyer), buyer) + 1
}
