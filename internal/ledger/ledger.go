// Package ledger provides query and rendering helpers over an order's
// history entries: display ordering, attachment lookup, metadata extraction,
// and the per-stage documentation predicate.
package ledger

import (
	"sort"
	"strings"

	"github.com/seaboundhq/seabound/internal/entity"
)

// SortForDisplay orders entries by (stage ascending, timestamp ascending),
// the stage-grouped chronological view.
func SortForDisplay(entries []*entity.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Stage != entries[j].Stage {
			return entries[i].Stage < entries[j].Stage
		}
		return entries[i].OccurredAt.Before(entries[j].OccurredAt)
	})
}

// SortRecentFirst orders entries by timestamp descending for recent-activity
// views.
func SortRecentFirst(entries []*entity.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.After(entries[j].OccurredAt)
	})
}

// FindAttachment looks up an attachment by declared filename within a stage.
func FindAttachment(entries []*entity.HistoryEntry, stage int, filename string) (entity.Attachment, bool) {
	for _, e := range entries {
		if e.Stage != stage {
			continue
		}
		for _, a := range e.Attachments {
			if strings.EqualFold(a.Filename, filename) {
				return a, true
			}
		}
	}
	return entity.Attachment{}, false
}

// LatestStageMeta returns the structured metadata of the most recent
// attachment at the given stage that carries one, or nil. Used to carry
// generated-document context forward across amendments.
func LatestStageMeta(entries []*entity.HistoryEntry, stage int) *entity.AttachmentMeta {
	var (
		best *entity.AttachmentMeta
		at   = int64(-1)
	)
	for _, e := range entries {
		if e.Stage != stage {
			continue
		}
		ts := e.OccurredAt.UnixNano()
		if ts < at {
			continue
		}
		for _, a := range e.Attachments {
			if a.Meta != nil {
				best = a.Meta
				at = ts
			}
		}
	}
	return best
}

// HasStageContent reports whether stage n of the order has documentation:
// any entry at that stage carrying attachments, or order fields that imply
// content independently (a PI number implies stage 2, approved artwork
// implies stage 3).
func HasStageContent(order *entity.Order, n int) bool {
	for _, e := range order.History {
		if e.Stage == n && (e.HasAttachment || len(e.Attachments) > 0) {
			return true
		}
	}
	switch n {
	case 2:
		return order.PINumber != ""
	case 3:
		return order.ArtworkApproved
	}
	return false
}

// IdempotencyKeys collects the non-empty idempotency keys already present on
// the ledger, used to skip re-inserting entries on full updates.
func IdempotencyKeys(entries []*entity.HistoryEntry) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, e := range entries {
		if e.IdempotencyKey != "" {
			keys[e.IdempotencyKey] = struct{}{}
		}
	}
	return keys
}
