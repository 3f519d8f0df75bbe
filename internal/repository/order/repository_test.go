package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/seaboundhq/seabound/internal/database"
	"github.com/seaboundhq/seabound/internal/entity"
	"github.com/seaboundhq/seabound/internal/testutil"
)

const testOrg int64 = 7

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db := testutil.OpenDB(t)
	return NewRepository(&database.Connections{Writer: db, Reader: db})
}

func newLegacyRepo(t *testing.T) (*Repository, *bun.DB) {
	t.Helper()
	db := testutil.OpenLegacyDB(t)
	return NewRepository(&database.Connections{Writer: db, Reader: db}), db
}

func sampleOrder(number string) *entity.Order {
	now := time.Now().UTC()
	return &entity.Order{
		OrgID:     testOrg,
		Number:    number,
		Buyer:     "Pescados E Guillem",
		Supplier:  "Blue Harvest Exports",
		Stage:     entity.StageMin,
		CreatedAt: now,
		UpdatedAt: now,
		Items: []*entity.LineItem{
			{Product: "Vannamei Shrimp", Size: "16-20", Packing: "10kg", Cases: 100, WeightKg: 1000, PricePerKg: 5, Currency: "USD", Total: 5000},
		},
		History: []*entity.HistoryEntry{
			{Stage: 1, OccurredAt: now, Sender: entity.SystemSender, Subject: "New purchase order " + number, IdempotencyKey: "create:" + number},
		},
	}
}

func TestCreateAndGetByNumber(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := sampleOrder("GI/PO/25-26/EG-001")
	require.NoError(t, repo.Create(ctx, order))
	require.NotZero(t, order.ID)

	got, err := repo.GetByNumber(ctx, testOrg, "GI/PO/25-26/EG-001", false)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Vannamei Shrimp", got.Items[0].Product)
	require.Len(t, got.History, 1)
	assert.Equal(t, "create:GI/PO/25-26/EG-001", got.History[0].IdempotencyKey)

	_, err = repo.GetByNumber(ctx, testOrg, "GI/PO/25-26/EG-999", false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByNumber(ctx, testOrg+1, "GI/PO/25-26/EG-001", false)
	assert.ErrorIs(t, err, ErrNotFound, "orders are invisible outside their organization")
}

func TestUpdateStage(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := sampleOrder("GI/PO/25-26/EG-002")
	require.NoError(t, repo.Create(ctx, order))

	entry := &entity.HistoryEntry{Stage: 2, OccurredAt: time.Now().UTC(), Sender: entity.SystemSender, Subject: "Purchase Order → Proforma Invoice", IdempotencyKey: "t1"}
	prev, err := repo.UpdateStage(ctx, testOrg, order.Number, 2, nil, entry)
	require.NoError(t, err)
	assert.Equal(t, 1, prev)

	got, err := repo.GetByNumber(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stage)
	assert.Len(t, got.History, 2)
}

func TestUpdateStageConflict(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := sampleOrder("GI/PO/25-26/EG-003")
	require.NoError(t, repo.Create(ctx, order))

	stale := 4
	entry := &entity.HistoryEntry{Stage: 5, OccurredAt: time.Now().UTC(), IdempotencyKey: "t2"}
	_, err := repo.UpdateStage(ctx, testOrg, order.Number, 5, &stale, entry)
	assert.ErrorIs(t, err, ErrStageConflict)

	got, err := repo.GetByNumber(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stage, "stage untouched after conflict")
	assert.Len(t, got.History, 1, "no entry ledgered after conflict")
}

func TestUpdateStageBackward(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := sampleOrder("GI/PO/25-26/EG-004")
	order.Stage = 5
	require.NoError(t, repo.Create(ctx, order))

	entry := &entity.HistoryEntry{Stage: 3, OccurredAt: time.Now().UTC(), IdempotencyKey: "t3"}
	prev, err := repo.UpdateStage(ctx, testOrg, order.Number, 3, nil, entry)
	require.NoError(t, err)
	assert.Equal(t, 5, prev)

	got, err := repo.GetByNumber(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stage)
	assert.Len(t, got.History, 2, "backward moves are ledgered, earlier entries kept")
}

func TestUpdateIdempotency(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := sampleOrder("GI/PO/25-26/EG-005")
	require.NoError(t, repo.Create(ctx, order))

	amend := func(key string) {
		loaded, err := repo.GetByNumber(ctx, testOrg, order.Number, false)
		require.NoError(t, err)

		loaded.Items = []*entity.LineItem{
			{Product: "Vannamei Shrimp", Size: "21-25", Packing: "10kg", Cases: 50, WeightKg: 500, PricePerKg: 6, Currency: "USD", Total: 3000},
		}
		loaded.TotalKilos = 500
		loaded.TotalValue = 3000
		loaded.History = append(loaded.History, &entity.HistoryEntry{
			Stage:          loaded.Stage,
			OccurredAt:     time.Now().UTC(),
			Subject:        "AMENDED: " + loaded.Number,
			IdempotencyKey: key,
		})
		require.NoError(t, repo.Update(ctx, loaded))
	}

	amend("amend-1")
	amend("amend-1")

	got, err := repo.GetByNumber(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.Len(t, got.History, 2, "retried amendment must not duplicate the ledger entry")
	require.Len(t, got.Items, 1)
	assert.Equal(t, "21-25", got.Items[0].Size)

	amend("amend-2")
	got, err = repo.GetByNumber(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.Len(t, got.History, 3)
}

func TestApplyPatch(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := sampleOrder("GI/PO/25-26/EG-006")
	require.NoError(t, repo.Create(ctx, order))

	pi := "PI-2031"
	approved := true
	require.NoError(t, repo.ApplyPatch(ctx, testOrg, order.Number, Patch{PINumber: &pi, ArtworkApproved: &approved}))

	got, err := repo.GetByNumber(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.Equal(t, "PI-2031", got.PINumber)
	assert.True(t, got.ArtworkApproved)
	assert.Equal(t, "Pescados E Guillem", got.Buyer, "untouched fields survive")

	err = repo.ApplyPatch(ctx, testOrg, "missing", Patch{PINumber: &pi})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	order := sampleOrder("GI/PO/25-26/EG-007")
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, repo.SoftDelete(ctx, testOrg, order.Number))

	_, err := repo.GetByNumber(ctx, testOrg, order.Number, false)
	assert.ErrorIs(t, err, ErrNotFound)

	hidden, err := repo.GetByNumber(ctx, testOrg, order.Number, true)
	require.NoError(t, err)
	assert.True(t, hidden.Deleted())

	orders, err := repo.List(ctx, testOrg, false)
	require.NoError(t, err)
	assert.Empty(t, orders)

	require.NoError(t, repo.Restore(ctx, testOrg, order.Number))

	restored, err := repo.GetByNumber(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.False(t, restored.Deleted())
	assert.Len(t, restored.Items, 1, "line items survive the delete/restore cycle")
	assert.Len(t, restored.History, 1, "ledger survives the delete/restore cycle")

	err = repo.Restore(ctx, testOrg, order.Number)
	assert.ErrorIs(t, err, ErrNotFound, "restoring a live order is a no-op miss")
}

func TestLegacySchemaFallsBackToHardDelete(t *testing.T) {
	repo, db := newLegacyRepo(t)
	ctx := context.Background()

	order := sampleOrder("GI/PO/25-26/EG-008")
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, repo.SoftDelete(ctx, testOrg, order.Number))

	_, err := repo.GetByNumber(ctx, testOrg, order.Number, true)
	assert.ErrorIs(t, err, ErrNotFound, "without deleted_at the delete is physical")

	count, err := db.NewSelect().Model((*entity.LineItem)(nil)).Where("order_id = ?", order.ID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "children are removed with the order")

	err = repo.Restore(ctx, testOrg, order.Number)
	assert.ErrorIs(t, err, ErrRestoreUnsupported)
}

func TestAllocateSequence(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	// Orders numbered before the counter existed seed the first allocation.
	existing := sampleOrder("GI/PO/25-26/EG-002")
	require.NoError(t, repo.Create(ctx, existing))

	seed := func(existing []*entity.Order) int64 {
		var max int64
		for _, o := range existing {
			if o.Number == "GI/PO/25-26/EG-002" && o.Buyer == "Pescados E Guillem" {
				max = 2
			}
		}
		return max + 1
	}

	seq, err := repo.AllocateSequence(ctx, testOrg, "EG", seed)
	require.NoError(t, err)
	assert.EqualValues(t, 3, seq)

	seq, err = repo.AllocateSequence(ctx, testOrg, "EG", seed)
	require.NoError(t, err)
	assert.EqualValues(t, 4, seq, "subsequent allocations come from the counter, not the scan")

	seq, err = repo.AllocateSequence(ctx, testOrg, "MA", func([]*entity.Order) int64 { return 1 })
	require.NoError(t, err)
	assert.EqualValues(t, 1, seq, "codes keep independent counters")
}

func TestCapabilityCheckRetriesAfterTransientError(t *testing.T) {
	db := testutil.OpenBareDB(t)
	repo := NewRepository(&database.Connections{Writer: db, Reader: db})
	ctx := context.Background()

	// The first call runs before the schema exists. That failure says
	// nothing about deleted_at and must not latch the hard-delete fallback.
	_, err := repo.GetByNumber(ctx, testOrg, "GI/PO/25-26/EG-001", false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	testutil.ApplySchema(t, db)

	order := sampleOrder("GI/PO/25-26/EG-001")
	require.NoError(t, repo.Create(ctx, order))

	require.NoError(t, repo.SoftDelete(ctx, testOrg, "GI/PO/25-26/EG-001"))

	got, err := repo.GetByNumber(ctx, testOrg, "GI/PO/25-26/EG-001", true)
	require.NoError(t, err, "order must survive as a soft-deleted row")
	assert.NotNil(t, got.DeletedAt)
	assert.Len(t, got.Items, 1)
	assert.Len(t, got.History, 1)

	require.NoError(t, repo.Restore(ctx, testOrg, "GI/PO/25-26/EG-001"))

	restored, err := repo.GetByNumber(ctx, testOrg, "GI/PO/25-26/EG-001", false)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)
}
