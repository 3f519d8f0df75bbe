package ponumber

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var scheme = Scheme{
	Prefix:       "GI",
	GenericFloor: 100,
	BuyerCodes:   map[string]string{"Pescados E Guillem": "EG"},
}

func TestCode(t *testing.T) {
	assert.Equal(t, "EG", scheme.Code("Pescados E Guillem"))
	assert.Equal(t, "EG", scheme.Code("pescados e guillem"))
	assert.Equal(t, "OC", scheme.Code("Ocean Catch Ltd"))
	assert.Equal(t, "MA", scheme.Code("mar azul"))
	assert.Empty(t, scheme.Code("  "))
}

func TestYearRange(t *testing.T) {
	assert.Equal(t, "25-26", YearRange(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "25-26", YearRange(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "26-27", YearRange(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "99-00", YearRange(time.Date(2099, time.June, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFormat(t *testing.T) {
	at := time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "GI/PO/25-26/EG-003", scheme.ForBuyer(at, "Pescados E Guillem", 3))
	assert.Equal(t, "GI/PO/25-26/EG-120", scheme.ForBuyer(at, "Pescados E Guillem", 120))
	assert.Equal(t, "GI/PO/25-26/101", scheme.Generic(at, 101))
}

func TestMaxGenericSeq(t *testing.T) {
	numbers := []string{
		"GI/PO/25-26/101",
		"GI/PO/25-26/105",
		"GI/PO/24-25/99",
		"GI/PO/25-26/EG-044",
		"not a po number",
	}

	assert.EqualValues(t, 105, MaxGenericSeq(numbers))
	assert.Zero(t, MaxGenericSeq(nil))
}

func TestMaxBuyerSeq(t *testing.T) {
	existing := []Existing{
		{Number: "GI/PO/25-26/EG-001", Buyer: "Pescados E Guillem"},
		{Number: "GI/PO/25-26/EG-002", Buyer: "Pescados E Guillem"},
		{Number: "GI/PO/24-25/eg-007", Buyer: "Pescados E Guillem"},
		{Number: "GI/PO/25-26/MA-030", Buyer: "Mar Azul"},
		{Number: "GI/PO/25-26/104", Buyer: "Ocean Catch Ltd"},
	}

	assert.EqualValues(t, 7, MaxBuyerSeq(existing, "EG", "Pescados E Guillem"))
	assert.EqualValues(t, 30, MaxBuyerSeq(existing, "MA", "Mar Azul"))
	assert.Zero(t, MaxBuyerSeq(existing, "ZZ", "Zeezicht"))
	assert.Zero(t, MaxBuyerSeq(existing, "", ""))
}

func TestMaxBuyerSeqCountsLegacyOrders(t *testing.T) {
	existing := []Existing{
		{Number: "GI/PO/25-26/EG-002", Buyer: "Pescados E Guillem"},
		// Same buyer, identifier predates buyer codes.
		{Number: "GI/PO/24-25/9", Buyer: "pescados e guillem"},
		// Another buyer's legacy order must not count.
		{Number: "GI/PO/24-25/40", Buyer: "Mar Azul"},
	}

	assert.EqualValues(t, 9, MaxBuyerSeq(existing, "EG", "Pescados E Guillem"))
	assert.EqualValues(t, 2, MaxBuyerSeq(existing[:1], "EG", "Pescados E Guillem"))
}

func TestSeeds(t *testing.T) {
	assert.EqualValues(t, 101, scheme.SeedGeneric(nil))
	assert.EqualValues(t, 106, scheme.SeedGeneric([]Existing{{Number: "GI/PO/25-26/105"}}))
	assert.EqualValues(t, 1, scheme.SeedBuyer(nil, "Pescados E Guillem"))
	assert.EqualValues(t, 3, scheme.SeedBuyer([]Existing{
		{Number: "GI/PO/25-26/EG-002", Buyer: "Pescados E Guillem"},
	}, "Pescados E Guillem"))
	assert.EqualValues(t, 8, scheme.SeedBuyer([]Existing{
		{Number: "PO-0007", Buyer: "Pescados E Guillem"},
	}, "Pescados E Guillem"))
}
