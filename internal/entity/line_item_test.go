package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackingWeight(t *testing.T) {
	tests := []struct {
		packing string
		want    float64
		ok      bool
	}{
		{"10kg", 10, true},
		{"10 kg bulk", 10, true},
		{"10kgs", 10, true},
		{"6 x 1.7kg", 10.2, true},
		{"6x1.7 kg", 10.2, true},
		{"1 x 8 kg block", 8, true},
		{"IVP", 0, false},
		{"tray pack", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.packing, func(t *testing.T) {
			got, ok := PackingWeight(tt.packing)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestLineItemNormalize(t *testing.T) {
	t.Run("packing pins weight", func(t *testing.T) {
		li := &LineItem{Packing: "10kg", Cases: 100, WeightKg: 999, PricePerKg: 5.40}
		li.Normalize()

		assert.Equal(t, 1000.0, li.WeightKg)
		assert.Equal(t, 5400.0, li.Total)
		assert.Equal(t, "USD", li.Currency)
	})

	t.Run("declared weight kept when packing is loose", func(t *testing.T) {
		li := &LineItem{Packing: "IVP", Cases: 100, WeightKg: 850, PricePerKg: 2, Currency: "EUR"}
		li.Normalize()

		assert.Equal(t, 850.0, li.WeightKg)
		assert.Equal(t, 1700.0, li.Total)
		assert.Equal(t, "EUR", li.Currency)
	})

	t.Run("total rounds to cents", func(t *testing.T) {
		li := &LineItem{WeightKg: 333.33, PricePerKg: 3.33}
		li.Normalize()

		assert.Equal(t, 1109.99, li.Total)
	})
}

func TestLineItemSpecLine(t *testing.T) {
	li := &LineItem{Freezing: "IQF", Size: "16-20", Glaze: "20%", Packing: "10kg"}
	assert.Equal(t, "IQF / 16-20 / 20% / 10kg", li.SpecLine())

	assert.Empty(t, (&LineItem{}).SpecLine())
}

func TestOrderRecomputeTotals(t *testing.T) {
	order := &Order{
		Items: []*LineItem{
			{Product: "Vannamei Shrimp", Freezing: "IQF", Size: "16-20", Packing: "10kg", Cases: 200, PricePerKg: 4.50},
			{Product: "Vannamei Shrimp", Freezing: "IQF", Size: "21-25", Packing: "10kg", Cases: 50, PricePerKg: 6.00},
		},
	}
	order.RecomputeTotals()

	require.Len(t, order.Items, 2)
	assert.Equal(t, 2500.0, order.TotalKilos)
	assert.Equal(t, 12000.0, order.TotalValue)
	assert.Equal(t, "Vannamei Shrimp", order.Product)
	assert.Equal(t, "IQF / 16-20 / 10kg; IQF / 21-25 / 10kg", order.Specs)
}

func TestOrderRecomputeTotalsKeepsManualText(t *testing.T) {
	order := &Order{Product: "As discussed", Specs: "See attachment"}
	order.RecomputeTotals()

	assert.Zero(t, order.TotalValue)
	assert.Equal(t, "As discussed", order.Product)
	assert.Equal(t, "See attachment", order.Specs)
}

func TestStageValid(t *testing.T) {
	assert.False(t, StageValid(0))
	assert.True(t, StageValid(StageMin))
	assert.True(t, StageValid(StageMax))
	assert.False(t, StageValid(StageMax+1))
}
