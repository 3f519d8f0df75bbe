package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaboundhq/seabound/internal/entity"
)

func ts(min int) time.Time {
	return time.Date(2025, time.September, 1, 12, min, 0, 0, time.UTC)
}

func TestSortForDisplay(t *testing.T) {
	entries := []*entity.HistoryEntry{
		{ID: 1, Stage: 2, OccurredAt: ts(5)},
		{ID: 2, Stage: 1, OccurredAt: ts(9)},
		{ID: 3, Stage: 1, OccurredAt: ts(1)},
		{ID: 4, Stage: 2, OccurredAt: ts(2)},
	}

	SortForDisplay(entries)

	got := []int64{entries[0].ID, entries[1].ID, entries[2].ID, entries[3].ID}
	assert.Equal(t, []int64{3, 2, 4, 1}, got)
}

func TestSortRecentFirst(t *testing.T) {
	entries := []*entity.HistoryEntry{
		{ID: 1, OccurredAt: ts(1)},
		{ID: 2, OccurredAt: ts(7)},
		{ID: 3, OccurredAt: ts(4)},
	}

	SortRecentFirst(entries)

	assert.EqualValues(t, 2, entries[0].ID)
	assert.EqualValues(t, 3, entries[1].ID)
	assert.EqualValues(t, 1, entries[2].ID)
}

func TestFindAttachment(t *testing.T) {
	entries := []*entity.HistoryEntry{
		{Stage: 1, Attachments: entity.AttachmentList{{Filename: "PO GI-101.pdf"}}},
		{Stage: 2, Attachments: entity.AttachmentList{{Filename: "PI draft.pdf"}}},
	}

	a, ok := FindAttachment(entries, 1, "po gi-101.pdf")
	require.True(t, ok)
	assert.Equal(t, "PO GI-101.pdf", a.Filename)

	_, ok = FindAttachment(entries, 2, "PO GI-101.pdf")
	assert.False(t, ok)
}

func TestLatestStageMeta(t *testing.T) {
	older := &entity.AttachmentMeta{DocumentURL: "https://docs/old.pdf"}
	newer := &entity.AttachmentMeta{DocumentURL: "https://docs/new.pdf"}

	entries := []*entity.HistoryEntry{
		{Stage: 1, OccurredAt: ts(1), Attachments: entity.AttachmentList{{Filename: "a", Meta: older}}},
		{Stage: 1, OccurredAt: ts(5), Attachments: entity.AttachmentList{{Filename: "b", Meta: newer}}},
		{Stage: 1, OccurredAt: ts(9), Attachments: entity.AttachmentList{{Filename: "c"}}},
		{Stage: 2, OccurredAt: ts(9), Attachments: entity.AttachmentList{{Filename: "d", Meta: &entity.AttachmentMeta{DocumentURL: "x"}}}},
	}

	got := LatestStageMeta(entries, 1)
	require.NotNil(t, got)
	assert.Equal(t, "https://docs/new.pdf", got.DocumentURL)

	assert.Nil(t, LatestStageMeta(entries, 5))
}

func TestHasStageContent(t *testing.T) {
	order := &entity.Order{
		History: []*entity.HistoryEntry{
			{Stage: 1, HasAttachment: true},
			{Stage: 4},
		},
	}

	assert.True(t, HasStageContent(order, 1))
	assert.False(t, HasStageContent(order, 4))

	order.PINumber = "PI-2031"
	assert.True(t, HasStageContent(order, 2))

	assert.False(t, HasStageContent(order, 3))
	order.ArtworkApproved = true
	assert.True(t, HasStageContent(order, 3))
}

func TestIdempotencyKeys(t *testing.T) {
	entries := []*entity.HistoryEntry{
		{IdempotencyKey: "a"},
		{IdempotencyKey: ""},
		{IdempotencyKey: "b"},
		{IdempotencyKey: "a"},
	}

	keys := IdempotencyKeys(entries)
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "a")
	assert.Contains(t, keys, "b")
}
