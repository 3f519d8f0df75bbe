package entity

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

// DefaultCurrency is assumed when a line item does not declare one.
const DefaultCurrency = "USD"

// LineItem is one priced product row of an order. Items are owned by the
// order and replaced wholesale on amendment, never partially patched.
type LineItem struct {
	bun.BaseModel `bun:"table:line_items"`

	ID            int64   `bun:"id,pk,autoincrement"`
	OrderID       int64   `bun:"order_id"`
	Product       string  `bun:"product"`
	Brand         string  `bun:"brand"`
	Freezing      string  `bun:"freezing"`
	Size          string  `bun:"size"`
	Glaze         string  `bun:"glaze"`
	DeclaredGlaze string  `bun:"declared_glaze"`
	Packing       string  `bun:"packing"`
	Cases         int     `bun:"cases"`
	WeightKg      float64 `bun:"weight_kg"`
	PricePerKg    float64 `bun:"price_per_kg"`
	Currency      string  `bun:"currency"`
	Total         float64 `bun:"total"`
}

// packingWeightRe matches packing descriptors that pin a per-case weight,
// either as a flat "10kg" or a multiplied "6 x 1.7kg".
var packingWeightRe = regexp.MustCompile(`(?i)^\s*(?:(\d+(?:\.\d+)?)\s*[x×]\s*)?(\d+(?:\.\d+)?)\s*kgs?\b`)

// PackingWeight extracts the fixed weight per case encoded in a packing
// descriptor. ok is false when the descriptor does not pin a weight.
func PackingWeight(packing string) (kg float64, ok bool) {
	m := packingWeightRe.FindStringSubmatch(packing)
	if m == nil {
		return 0, false
	}
	unit, err := strconv.ParseFloat(m[2], 64)
	if err != nil || unit <= 0 {
		return 0, false
	}
	if m[1] != "" {
		count, err := strconv.ParseFloat(m[1], 64)
		if err != nil || count <= 0 {
			return 0, false
		}
		unit *= count
	}
	return unit, true
}

// Normalize reconciles the item's derived fields: a packing-encoded per-case
// weight overrides the declared weight (weight = cases × per-case kg), the
// currency defaults to USD, and the total is recomputed from weight and
// price. Callers never compute totals themselves.
func (li *LineItem) Normalize() {
	if strings.TrimSpace(li.Currency) == "" {
		li.Currency = DefaultCurrency
	}
	if perCase, ok := PackingWeight(li.Packing); ok && li.Cases > 0 {
		li.WeightKg = round2(float64(li.Cases) * perCase)
	}
	li.Total = round2(li.WeightKg * li.PricePerKg)
}

// SpecLine renders the item's descriptors as a single free-text spec line.
func (li *LineItem) SpecLine() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{li.Freezing, li.Size, li.Glaze, li.DeclaredGlaze, li.Packing, li.Brand} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " / ")
}

// Snapshot captures the item's value fields for embedding in ledger
// attachment metadata.
func (li *LineItem) Snapshot() LineItemSnapshot {
	return LineItemSnapshot{
		Product:       li.Product,
		Brand:         li.Brand,
		Freezing:      li.Freezing,
		Size:          li.Size,
		Glaze:         li.Glaze,
		DeclaredGlaze: li.DeclaredGlaze,
		Packing:       li.Packing,
		Cases:         li.Cases,
		WeightKg:      li.WeightKg,
		PricePerKg:    li.PricePerKg,
		Currency:      li.Currency,
		Total:         li.Total,
	}
}

// LineItemSnapshot is the JSON form of a line item carried inside history
// attachment metadata so documents can be regenerated later without
// re-deriving history.
type LineItemSnapshot struct {
	Product       string  `json:"product"`
	Brand         string  `json:"brand,omitempty"`
	Freezing      string  `json:"freezing,omitempty"`
	Size          string  `json:"size,omitempty"`
	Glaze         string  `json:"glaze,omitempty"`
	DeclaredGlaze string  `json:"declared_glaze,omitempty"`
	Packing       string  `json:"packing,omitempty"`
	Cases         int     `json:"cases"`
	WeightKg      float64 `json:"weight_kg"`
	PricePerKg    float64 `json:"price_per_kg"`
	Currency      string  `json:"currency"`
	Total         float64 `json:"total"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
