package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/seaboundhq/seabound/internal/database"
	"github.com/seaboundhq/seabound/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Orders seeds a sample purchase order with line items and a stage-1 ledger
// entry, plus an unmatched inbound message, if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()

	order := &entity.Order{
		OrgID:       1,
		Number:      "GI/PO/25-26/EG-001",
		Buyer:       "Pescados E Guillem",
		Supplier:    "Blue Harbour Exports",
		Product:     "Frozen Vannamei Shrimp",
		Specs:       "IQF / 16-20 / 20% glaze / 10kg bulk",
		Origin:      "Visakhapatnam",
		Destination: "Valencia",
		Stage:       entity.StageMin,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items: []*entity.LineItem{{
			Product:    "Frozen Vannamei Shrimp",
			Freezing:   "IQF",
			Size:       "16-20",
			Glaze:      "20%",
			Packing:    "10kg",
			Cases:      1000,
			PricePerKg: 5.40,
		}},
		History: []*entity.HistoryEntry{{
			Stage:          entity.StageMin,
			OccurredAt:     now,
			Sender:         entity.SystemSender,
			Subject:        "New purchase order GI/PO/25-26/EG-001",
			Body:           "Pescados E Guillem → Blue Harbour Exports: Frozen Vannamei Shrimp",
			IdempotencyKey: uuid.NewString(),
		}},
	}
	order.RecomputeTotals()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*entity.Order)(nil)).
			Where("org_id = ?", order.OrgID).
			Where("number = ?", order.Number).
			Exists(ctx)
		if err != nil || exists {
			return err
		}
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		for _, item := range order.Items {
			item.OrderID = order.ID
		}
		if _, err := tx.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
			return err
		}
		for _, e := range order.History {
			e.OrderID = order.ID
			if _, err := tx.NewInsert().Model(e).Exec(ctx); err != nil {
				return err
			}
		}

		msg := &entity.InboundMessage{
			OrgID:         1,
			MessageID:     uuid.NewString(),
			SenderAddress: "exports@blueharbour.example",
			SenderName:    "Blue Harbour Exports",
			Recipient:     "orders@seabound.example",
			Subject:       "PI for GI/PO/25-26/EG-001",
			Body:          "Please find the proforma invoice attached.",
			ReceivedAt:    now,
			HasAttachment: true,
		}
		_, err = tx.NewInsert().Model(msg).Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("seeded sample order", zap.String("number", order.Number))
	return nil
}
