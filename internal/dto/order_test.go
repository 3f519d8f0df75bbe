package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaboundhq/seabound/internal/entity"
)

func TestFromOrderStagesWithContent(t *testing.T) {
	now := time.Now().UTC()
	order := &entity.Order{
		ID:       12,
		Number:   "GI/PO/25-26/EG-001",
		Buyer:    "Pescados E Guillem",
		Supplier: "Blue Harvest Exports",
		Stage:    5,
		PINumber: "PI-2042",
		History: []*entity.HistoryEntry{
			{Stage: 1, OccurredAt: now, HasAttachment: true},
			{Stage: 4, OccurredAt: now},
			{Stage: 5, OccurredAt: now, Attachments: entity.AttachmentList{{Filename: "booking.pdf"}}},
		},
	}

	resp := FromOrder(order)

	// Stage 2 counts through the PI number even without a ledger attachment;
	// stage 4 has an entry but no documentation.
	assert.Equal(t, []int{1, 2, 5}, resp.StagesWithContent)
	require.Len(t, resp.History, 3)
}

func TestFromOrderWithoutContent(t *testing.T) {
	resp := FromOrder(&entity.Order{Number: "GI/PO/25-26/101"})
	assert.Empty(t, resp.StagesWithContent)
}
