package maillink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/seaboundhq/seabound/internal/config"
	"github.com/seaboundhq/seabound/internal/database"
	"github.com/seaboundhq/seabound/internal/entity"
	mailrepo "github.com/seaboundhq/seabound/internal/repository/mailbox"
	orderrepo "github.com/seaboundhq/seabound/internal/repository/order"
	ordersvc "github.com/seaboundhq/seabound/internal/service/order"
	"github.com/seaboundhq/seabound/internal/testutil"
	"github.com/seaboundhq/seabound/pkg/errorbank"
)

const testOrg int64 = 11

type fixture struct {
	svc    *Service
	orders *ordersvc.Service
	mail   *mailrepo.Repository
	db     *bun.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.OpenDB(t)
	conns := &database.Connections{Writer: db, Reader: db}

	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Orders = config.Orders{
		NumberPrefix: "GI",
		GenericFloor: 100,
		StageNames:   map[int]string{1: "Purchase Order", 2: "Proforma Invoice"},
		BuyerCodes:   map[string]string{"Pescados E Guillem": "EG"},
	}

	orders := ordersvc.NewService(ordersvc.Params{
		Repository: orderrepo.NewRepository(conns),
		Cache:      nil,
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  nil,
	})
	mail := mailrepo.NewRepository(conns)

	svc := NewService(Params{Mailbox: mail, Orders: orders, Logger: zap.NewNop()})
	return &fixture{svc: svc, orders: orders, mail: mail, db: db}
}

func (f *fixture) createOrder(t *testing.T) *entity.Order {
	t.Helper()

	order, err := f.orders.Create(context.Background(), testOrg, ordersvc.CreateInput{
		Buyer:    "Pescados E Guillem",
		Supplier: "Blue Harvest Exports",
		Items:    []*entity.LineItem{{Product: "Squid", WeightKg: 500, PricePerKg: 3}},
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) createMessage(t *testing.T, messageID string, stage *int) *entity.InboundMessage {
	t.Helper()

	msg := &entity.InboundMessage{
		OrgID:         testOrg,
		MessageID:     messageID,
		SenderAddress: "pedro@guillem.es",
		SenderName:    "Pedro Guillem",
		Recipient:     "orders@seabound.example",
		Subject:       "RE: Proforma invoice",
		Body:          "Please confirm the revised PI.",
		ReceivedAt:    time.Now().UTC().Add(-time.Hour),
		HasAttachment: true,
		DetectedStage: stage,
	}
	require.NoError(t, f.mail.CreateMessage(context.Background(), msg))
	return msg
}

func TestLinkMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)
	stage := 2
	msg := f.createMessage(t, "msg-001", &stage)

	got, err := f.svc.LinkMessage(ctx, testOrg, msg.ID, order.Number, "matched manually")
	require.NoError(t, err)

	require.Len(t, got.History, 2)
	var linked *entity.HistoryEntry
	for _, e := range got.History {
		if e.IdempotencyKey == "link:msg-001" {
			linked = e
		}
	}
	require.NotNil(t, linked)
	assert.Equal(t, 2, linked.Stage, "entry lands on the detected stage")
	assert.Equal(t, "Pedro Guillem <pedro@guillem.es>", linked.Sender)
	assert.Equal(t, "RE: Proforma invoice", linked.Subject)
	assert.True(t, linked.HasAttachment)

	stored, err := f.mail.GetMessage(ctx, testOrg, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LinkedOrderID)
	assert.Equal(t, order.ID, *stored.LinkedOrderID)
	assert.Equal(t, "matched manually", stored.LinkNote)
	assert.True(t, stored.Matched())
}

func TestLinkMessageDefaultsToStageOne(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t)
	msg := f.createMessage(t, "msg-002", nil)

	got, err := f.svc.LinkMessage(context.Background(), testOrg, msg.ID, order.Number, "")
	require.NoError(t, err)

	for _, e := range got.History {
		if e.IdempotencyKey == "link:msg-002" {
			assert.Equal(t, entity.StageMin, e.Stage)
			return
		}
	}
	t.Fatal("linked entry not found on ledger")
}

func TestLinkMessageMissingTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)
	msg := f.createMessage(t, "msg-003", nil)

	_, err := f.svc.LinkMessage(ctx, testOrg, msg.ID+100, order.Number, "")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())

	_, err = f.svc.LinkMessage(ctx, testOrg, msg.ID, "GI/PO/25-26/EG-999", "")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestUnlinkMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)
	msg := f.createMessage(t, "msg-004", nil)

	_, err := f.svc.LinkMessage(ctx, testOrg, msg.ID, order.Number, "first pass")
	require.NoError(t, err)
	require.NoError(t, f.svc.UnlinkMessage(ctx, testOrg, msg.ID))

	stored, err := f.mail.GetMessage(ctx, testOrg, msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.Matched())
	assert.Empty(t, stored.LinkNote)
	assert.Nil(t, stored.LinkedAt)

	unmatched, err := f.svc.ListUnmatched(ctx, testOrg)
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.Equal(t, msg.ID, unmatched[0].ID)

	got, err := f.orders.Get(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.Len(t, got.History, 2, "ledger entries from the earlier link stay put")
}

func TestReassignEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.createOrder(t)
	target := f.createOrder(t)
	msg := f.createMessage(t, "msg-005", nil)

	_, err := f.svc.LinkMessage(ctx, testOrg, msg.ID, source.Number, "")
	require.NoError(t, err)

	src, err := f.orders.Get(ctx, testOrg, source.Number, false)
	require.NoError(t, err)
	var entryID int64
	for _, e := range src.History {
		if e.IdempotencyKey == "link:msg-005" {
			entryID = e.ID
		}
	}
	require.NotZero(t, entryID)

	require.NoError(t, f.svc.ReassignEntry(ctx, testOrg, entryID, source.Number, target.Number, ""))

	src, err = f.orders.Get(ctx, testOrg, source.Number, false)
	require.NoError(t, err)
	dst, err := f.orders.Get(ctx, testOrg, target.Number, false)
	require.NoError(t, err)
	assert.Len(t, src.History, 1, "entry left the source ledger")
	assert.Len(t, dst.History, 2, "entry arrived on the target ledger")

	var corrections []*entity.Correction
	require.NoError(t, f.db.NewSelect().Model(&corrections).Where("org_id = ?", testOrg).Scan(ctx))
	require.Len(t, corrections, 1)
	assert.Equal(t, target.Number, corrections[0].Target)
	assert.Equal(t, "RE: Proforma invoice", corrections[0].Subject)
	assert.Contains(t, corrections[0].Note, source.Number)
	assert.Contains(t, corrections[0].Note, target.Number)
}

func TestRemoveEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)
	msg := f.createMessage(t, "msg-006", nil)

	_, err := f.svc.LinkMessage(ctx, testOrg, msg.ID, order.Number, "")
	require.NoError(t, err)

	got, err := f.orders.Get(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	var entryID int64
	for _, e := range got.History {
		if e.IdempotencyKey == "link:msg-006" {
			entryID = e.ID
		}
	}
	require.NotZero(t, entryID)

	require.NoError(t, f.svc.RemoveEntry(ctx, testOrg, entryID, order.Number, "wrong mailbox rule"))

	got, err = f.orders.Get(ctx, testOrg, order.Number, false)
	require.NoError(t, err)
	assert.Len(t, got.History, 1, "entry removed from the ledger")

	var corrections []*entity.Correction
	require.NoError(t, f.db.NewSelect().Model(&corrections).Where("org_id = ?", testOrg).Scan(ctx))
	require.Len(t, corrections, 1)
	assert.Equal(t, entity.CorrectionRemoved, corrections[0].Target)
	assert.Equal(t, "wrong mailbox rule", corrections[0].Note)

	err = f.svc.RemoveEntry(ctx, testOrg, entryID, order.Number, "again")
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}
