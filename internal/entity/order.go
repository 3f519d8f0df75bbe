package entity

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Stage bounds for the fulfillment workflow. Stage 8 is terminal in normal
// flow, but re-entry and backward moves are allowed.
const (
	StageMin = 1
	StageMax = 8
)

// Order represents an international seafood purchase order and owns its line
// items and communication ledger.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              int64      `bun:"id,pk,autoincrement"`
	OrgID           int64      `bun:"org_id"`
	Number          string     `bun:"number"`
	Buyer           string     `bun:"buyer"`
	Supplier        string     `bun:"supplier"`
	Product         string     `bun:"product"`
	Specs           string     `bun:"specs"`
	Origin          string     `bun:"origin"`
	Destination     string     `bun:"destination"`
	Stage           int        `bun:"stage"`
	Brand           string     `bun:"brand"`
	PINumber        string     `bun:"pi_number"`
	AWBNumber       string     `bun:"awb_number"`
	TotalValue      float64    `bun:"total_value"`
	TotalKilos      float64    `bun:"total_kilos"`
	ArtworkApproved bool       `bun:"artwork_approved"`
	Metadata        Metadata   `bun:"metadata"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero"`
	DeletedAt       *time.Time `bun:"deleted_at,nullzero"`

	Items   []*LineItem     `bun:"rel:has-many,join:id=order_id"`
	History []*HistoryEntry `bun:"rel:has-many,join:id=order_id"`
}

// StageValid reports whether n is a legal workflow stage.
func StageValid(n int) bool {
	return n >= StageMin && n <= StageMax
}

// Deleted reports whether the order carries a soft-delete marker.
func (o *Order) Deleted() bool {
	return o.DeletedAt != nil
}

// RecomputeTotals refreshes the derived order-level fields from the current
// line item set: combined product description, combined specs, total value
// and total weight. Items are normalized first so packing-derived weights
// are honored.
func (o *Order) RecomputeTotals() {
	var (
		value    float64
		kilos    float64
		products []string
		specs    []string
	)
	seenProduct := make(map[string]bool)
	seenSpec := make(map[string]bool)

	for _, item := range o.Items {
		item.Normalize()
		value += item.Total
		kilos += item.WeightKg
		if item.Product != "" && !seenProduct[item.Product] {
			seenProduct[item.Product] = true
			products = append(products, item.Product)
		}
		if s := item.SpecLine(); s != "" && !seenSpec[s] {
			seenSpec[s] = true
			specs = append(specs, s)
		}
	}

	o.TotalValue = round2(value)
	o.TotalKilos = round2(kilos)
	if len(products) > 0 {
		o.Product = strings.Join(products, ", ")
	}
	if len(specs) > 0 {
		o.Specs = strings.Join(specs, "; ")
	}
}
