package order

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seaboundhq/seabound/internal/database"
	"github.com/seaboundhq/seabound/internal/entity"
	"github.com/seaboundhq/seabound/internal/ledger"
)

var repoTracer = otel.Tracer("github.com/seaboundhq/seabound/repository/order")

// ErrNotFound is returned when an order is missing for the organization scope.
var ErrNotFound = errors.New("order not found")

// ErrStageConflict is returned when an optimistic stage update loses to a
// concurrent writer (the stored stage no longer matches the expected one).
var ErrStageConflict = errors.New("stage changed concurrently")

// ErrRestoreUnsupported is returned when restore is requested against a
// schema without the deleted_at column.
var ErrRestoreUnsupported = errors.New("schema does not support soft delete")

// Patch is a sparse field update; nil fields are left untouched.
type Patch struct {
	Buyer           *string
	Supplier        *string
	Product         *string
	Specs           *string
	Origin          *string
	Destination     *string
	Brand           *string
	PINumber        *string
	AWBNumber       *string
	TotalValue      *float64
	TotalKilos      *float64
	ArtworkApproved *bool
	Metadata        *entity.Metadata
}

// Soft-delete capability, resolved by probing the schema rather than by
// matching error text per call.
type capability int8

const (
	capUnknown capability = iota
	capSupported
	capUnsupported
)

// Repository encapsulates read/write access for orders, their line items and
// their history ledger.
type Repository struct {
	writer *bun.DB
	reader *bun.DB

	// Older schemas without deleted_at fall back to hard deletion and
	// unfiltered listing. The answer latches only once the probe gets a
	// definitive one; transient failures leave it undecided.
	capMu    sync.Mutex
	capState capability
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

func (r *Repository) softDeleteSupported(ctx context.Context) (bool, error) {
	r.capMu.Lock()
	defer r.capMu.Unlock()

	if r.capState == capUnknown {
		var probe sql.NullTime
		err := r.reader.NewSelect().
			Model((*entity.Order)(nil)).
			Column("deleted_at").
			Limit(1).
			Scan(ctx, &probe)
		switch {
		case err == nil || errors.Is(err, sql.ErrNoRows):
			r.capState = capSupported
		case database.IsMissingColumn(err):
			r.capState = capUnsupported
		default:
			// Not a schema answer. Surface the failure and probe again on
			// the next call rather than latching a destructive downgrade.
			return false, err
		}
	}
	return r.capState == capSupported, nil
}

// Create persists a new order together with its line items and initial
// history entries in one transaction.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	softDeletes, err := r.softDeleteSupported(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capability probe failed")
		return err
	}

	err = r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ins := tx.NewInsert().Model(order)
		if !softDeletes {
			ins = ins.ExcludeColumn("deleted_at")
		}
		if _, err := ins.Exec(ctx); err != nil {
			return err
		}
		for _, item := range order.Items {
			item.OrderID = order.ID
		}
		if len(order.Items) > 0 {
			if _, err := tx.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
				return err
			}
		}
		for _, e := range order.History {
			e.OrderID = order.ID
			if _, err := tx.NewInsert().Model(e).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByNumber fetches an order with its items and history by its PO number
// within the organization. Soft-deleted orders are excluded unless asked for.
func (r *Repository) GetByNumber(ctx context.Context, orgID int64, number string, includeDeleted bool) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByNumber", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order := new(entity.Order)
	q := r.reader.NewSelect().
		Model(order).
		Relation("Items").
		Relation("History").
		Where("org_id = ?", orgID).
		Where("number = ?", number)
	softDeletes, err := r.softDeleteSupported(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capability probe failed")
		return nil, err
	}
	if softDeletes {
		if !includeDeleted {
			q = q.Where("deleted_at IS NULL")
		}
	} else {
		q = q.ExcludeColumn("deleted_at")
	}

	err = q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns the organization's orders, newest first, excluding
// soft-deleted ones unless asked for.
func (r *Repository) List(ctx context.Context, orgID int64, includeDeleted bool) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List", trace.WithAttributes(attribute.Int64("org.id", orgID)))
	defer span.End()

	var orders []*entity.Order
	q := r.reader.NewSelect().
		Model(&orders).
		Relation("Items").
		Where("org_id = ?", orgID).
		OrderExpr("created_at DESC")
	softDeletes, err := r.softDeleteSupported(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capability probe failed")
		return nil, err
	}
	if softDeletes {
		if !includeDeleted {
			q = q.Where("deleted_at IS NULL")
		}
	} else {
		q = q.ExcludeColumn("deleted_at")
	}

	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// UpdateStage persists a stage change with an optimistic check against the
// expected previous stage, then appends the transition entry in the same
// transaction. expectedPrev nil means "whatever is currently stored".
func (r *Repository) UpdateStage(ctx context.Context, orgID int64, number string, newStage int, expectedPrev *int, entry *entity.HistoryEntry) (previous int, err error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStage", trace.WithAttributes(
		attribute.String("order.number", number),
		attribute.Int("order.stage", newStage),
	))
	defer span.End()

	err = r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := new(entity.Order)
		err := tx.NewSelect().
			Model(current).
			Column("id", "stage").
			Where("org_id = ?", orgID).
			Where("number = ?", number).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		previous = current.Stage
		if expectedPrev != nil {
			previous = *expectedPrev
		}

		res, err := tx.NewUpdate().
			Model((*entity.Order)(nil)).
			Set("stage = ?", newStage).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", current.ID).
			Where("stage = ?", previous).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStageConflict
		}

		// The transition is ledgered unconditionally, backward and no-op
		// moves included: the ledger records intent, not just progress.
		entry.OrderID = current.ID
		_, err = tx.NewInsert().Model(entry).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage update failed")
	}
	return previous, err
}

// ApplyPatch writes only the supplied fields of a sparse edit.
func (r *Repository) ApplyPatch(ctx context.Context, orgID int64, number string, patch Patch) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ApplyPatch", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	q := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Where("org_id = ?", orgID).
		Where("number = ?", number)

	if patch.Buyer != nil {
		q = q.Set("buyer = ?", *patch.Buyer)
	}
	if patch.Supplier != nil {
		q = q.Set("supplier = ?", *patch.Supplier)
	}
	if patch.Product != nil {
		q = q.Set("product = ?", *patch.Product)
	}
	if patch.Specs != nil {
		q = q.Set("specs = ?", *patch.Specs)
	}
	if patch.Origin != nil {
		q = q.Set("origin = ?", *patch.Origin)
	}
	if patch.Destination != nil {
		q = q.Set("destination = ?", *patch.Destination)
	}
	if patch.Brand != nil {
		q = q.Set("brand = ?", *patch.Brand)
	}
	if patch.PINumber != nil {
		q = q.Set("pi_number = ?", *patch.PINumber)
	}
	if patch.AWBNumber != nil {
		q = q.Set("awb_number = ?", *patch.AWBNumber)
	}
	if patch.TotalValue != nil {
		q = q.Set("total_value = ?", *patch.TotalValue)
	}
	if patch.TotalKilos != nil {
		q = q.Set("total_kilos = ?", *patch.TotalKilos)
	}
	if patch.ArtworkApproved != nil {
		q = q.Set("artwork_approved = ?", *patch.ArtworkApproved)
	}
	if patch.Metadata != nil {
		q = q.Set("metadata = ?", *patch.Metadata)
	}
	q = q.Set("updated_at = ?", time.Now().UTC())

	res, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "patch failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Update performs a full update of the order row, wholesale-replaces its
// line items, and appends only genuinely new history entries: an incoming
// entry is inserted when it is unpersisted (zero id) and carries an
// idempotency key the ledger has not seen. Round-tripping an order that
// already contains its full history therefore never duplicates rows.
func (r *Repository) Update(ctx context.Context, order *entity.Order) error {
	if order == nil || order.ID == 0 {
		return ErrNotFound
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(order).
			Column("buyer", "supplier", "product", "specs", "origin", "destination",
				"stage", "brand", "pi_number", "awb_number", "total_value",
				"total_kilos", "artwork_approved", "metadata").
			Set("updated_at = ?", time.Now().UTC()).
			WherePK().
			Where("org_id = ?", order.OrgID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		// The incoming item set is authoritative.
		if _, err := tx.NewDelete().
			Model((*entity.LineItem)(nil)).
			Where("order_id = ?", order.ID).
			Exec(ctx); err != nil {
			return err
		}
		for _, item := range order.Items {
			item.ID = 0
			item.OrderID = order.ID
		}
		if len(order.Items) > 0 {
			if _, err := tx.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
				return err
			}
		}

		var persisted []*entity.HistoryEntry
		if err := tx.NewSelect().
			Model(&persisted).
			Column("idempotency_key").
			Where("order_id = ?", order.ID).
			Where("idempotency_key <> ''").
			Scan(ctx); err != nil {
			return err
		}
		known := ledger.IdempotencyKeys(persisted)

		for _, e := range order.History {
			if e.ID != 0 || e.IdempotencyKey == "" {
				continue
			}
			if _, dup := known[e.IdempotencyKey]; dup {
				continue
			}
			known[e.IdempotencyKey] = struct{}{}
			e.OrderID = order.ID
			if _, err := tx.NewInsert().Model(e).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// SoftDelete marks the order deleted. On schemas without the deleted_at
// column it degrades to physical deletion of the order and its children.
func (r *Repository) SoftDelete(ctx context.Context, orgID int64, number string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SoftDelete", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	softDeletes, err := r.softDeleteSupported(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capability probe failed")
		return err
	}
	if !softDeletes {
		return r.hardDelete(ctx, orgID, number)
	}

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("deleted_at = ?", time.Now().UTC()).
		Where("org_id = ?", orgID).
		Where("number = ?", number).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "soft delete failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) hardDelete(ctx context.Context, orgID int64, number string) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order := new(entity.Order)
		err := tx.NewSelect().
			Model(order).
			Column("id").
			Where("org_id = ?", orgID).
			Where("number = ?", number).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*entity.HistoryEntry)(nil)).Where("order_id = ?", order.ID).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*entity.LineItem)(nil)).Where("order_id = ?", order.ID).Exec(ctx); err != nil {
			return err
		}
		_, err = tx.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", order.ID).Exec(ctx)
		return err
	})
}

// Restore clears the soft-delete marker. Not available on schemas that were
// never migrated to soft deletion.
func (r *Repository) Restore(ctx context.Context, orgID int64, number string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Restore", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	softDeletes, err := r.softDeleteSupported(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capability probe failed")
		return err
	}
	if !softDeletes {
		return ErrRestoreUnsupported
	}

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("deleted_at = NULL").
		Where("org_id = ?", orgID).
		Where("number = ?", number).
		Where("deleted_at IS NOT NULL").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "restore failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AllocateSequence atomically claims the next sequence for the (org, code)
// counter. A missing counter row is seeded inside the same transaction from
// the organization's existing orders (identifier plus buyer), so orders
// numbered before the counter existed are honored. Two concurrent
// allocations can never return the same value.
func (r *Repository) AllocateSequence(ctx context.Context, orgID int64, code string, seed func(existing []*entity.Order) int64) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.AllocateSequence", trace.WithAttributes(attribute.String("po.code", code)))
	defer span.End()

	var seq int64
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*entity.POSequence)(nil)).
			Set("seq = seq + 1").
			Where("org_id = ?", orgID).
			Where("code = ?", code).
			Exec(ctx)
		if err != nil {
			return err
		}

		if n, _ := res.RowsAffected(); n == 0 {
			var existing []*entity.Order
			if err := tx.NewSelect().
				Model(&existing).
				Column("number", "buyer").
				Where("org_id = ?", orgID).
				Scan(ctx); err != nil {
				return err
			}
			row := &entity.POSequence{OrgID: orgID, Code: code, Seq: seed(existing)}
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				if !database.IsUniqueViolation(err) {
					return err
				}
				// Lost the seeding race to a concurrent transaction; claim
				// the next value from the row it created instead.
				res, err := tx.NewUpdate().
					Model((*entity.POSequence)(nil)).
					Set("seq = seq + 1").
					Where("org_id = ?", orgID).
					Where("code = ?", code).
					Exec(ctx)
				if err != nil {
					return err
				}
				if n, _ := res.RowsAffected(); n == 0 {
					return errors.New("po sequence row vanished during seeding")
				}
			}
		}

		return tx.NewSelect().
			Model((*entity.POSequence)(nil)).
			Column("seq").
			Where("org_id = ?", orgID).
			Where("code = ?", code).
			Scan(ctx, &seq)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation failed")
		return 0, err
	}
	return seq, nil
}
