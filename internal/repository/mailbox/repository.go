package mailbox

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seaboundhq/seabound/internal/database"
	"github.com/seaboundhq/seabound/internal/entity"
)

var repoTracer = otel.Tracer("github.com/seaboundhq/seabound/repository/mailbox")

// ErrMessageNotFound is returned when an inbound message is missing for the
// organization scope.
var ErrMessageNotFound = errors.New("inbound message not found")

// ErrEntryNotFound is returned when a ledger entry is missing under the
// stated source order.
var ErrEntryNotFound = errors.New("history entry not found")

// Repository persists inbound mailbox records, ledger entry moves, and the
// correction side channel.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a mailbox repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// GetMessage fetches one inbound message by id within the organization.
func (r *Repository) GetMessage(ctx context.Context, orgID, id int64) (*entity.InboundMessage, error) {
	ctx, span := repoTracer.Start(ctx, "MailboxRepository.GetMessage", trace.WithAttributes(attribute.Int64("message.id", id)))
	defer span.End()

	msg := new(entity.InboundMessage)
	err := r.reader.NewSelect().
		Model(msg).
		Where("org_id = ?", orgID).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrMessageNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return msg, nil
}

// ListUnmatched returns the organization's messages not yet bound to any
// order, oldest first.
func (r *Repository) ListUnmatched(ctx context.Context, orgID int64) ([]*entity.InboundMessage, error) {
	ctx, span := repoTracer.Start(ctx, "MailboxRepository.ListUnmatched", trace.WithAttributes(attribute.Int64("org.id", orgID)))
	defer span.End()

	var msgs []*entity.InboundMessage
	err := r.reader.NewSelect().
		Model(&msgs).
		Where("org_id = ?", orgID).
		Where("detected_order_id IS NULL").
		Where("linked_order_id IS NULL").
		OrderExpr("received_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return msgs, nil
}

// Link binds a message to an order and appends the synthesized ledger entry,
// both in one transaction. The entry is written first: if it cannot be
// persisted the link is not written either, so the two records cannot
// diverge.
func (r *Repository) Link(ctx context.Context, msg *entity.InboundMessage, orderID int64, entry *entity.HistoryEntry, note string) error {
	ctx, span := repoTracer.Start(ctx, "MailboxRepository.Link", trace.WithAttributes(
		attribute.Int64("message.id", msg.ID),
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		entry.OrderID = orderID
		if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
			return err
		}

		now := time.Now().UTC()
		res, err := tx.NewUpdate().
			Model((*entity.InboundMessage)(nil)).
			Set("linked_order_id = ?", orderID).
			Set("link_note = ?", note).
			Set("linked_at = ?", now).
			Where("org_id = ?", msg.OrgID).
			Where("id = ?", msg.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrMessageNotFound
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "link failed")
	}
	return err
}

// Unlink clears both the automatic match fields and the manual link fields,
// returning the message to the unmatched pool. Ledger entries created by an
// earlier link are left alone.
func (r *Repository) Unlink(ctx context.Context, orgID, messageID int64) error {
	ctx, span := repoTracer.Start(ctx, "MailboxRepository.Unlink", trace.WithAttributes(attribute.Int64("message.id", messageID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.InboundMessage)(nil)).
		Set("detected_order_id = NULL").
		Set("detected_stage = NULL").
		Set("summary = ?", "").
		Set("auto_advanced = ?", false).
		Set("linked_order_id = NULL").
		Set("link_note = ?", "").
		Set("linked_at = NULL").
		Where("org_id = ?", orgID).
		Where("id = ?", messageID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unlink failed")
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// GetEntry fetches one ledger entry by id under the given order.
func (r *Repository) GetEntry(ctx context.Context, entryID, orderID int64) (*entity.HistoryEntry, error) {
	ctx, span := repoTracer.Start(ctx, "MailboxRepository.GetEntry", trace.WithAttributes(attribute.Int64("entry.id", entryID)))
	defer span.End()

	entry := new(entity.HistoryEntry)
	err := r.reader.NewSelect().
		Model(entry).
		Where("id = ?", entryID).
		Where("order_id = ?", orderID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrEntryNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entry, nil
}

// ReassignEntry re-parents a ledger entry from one order to another and
// records the correction, in one transaction. The entry moves; it is never
// copied.
func (r *Repository) ReassignEntry(ctx context.Context, entryID, fromOrderID, toOrderID int64, correction *entity.Correction) error {
	ctx, span := repoTracer.Start(ctx, "MailboxRepository.ReassignEntry", trace.WithAttributes(
		attribute.Int64("entry.id", entryID),
		attribute.Int64("order.from", fromOrderID),
		attribute.Int64("order.to", toOrderID),
	))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*entity.HistoryEntry)(nil)).
			Set("order_id = ?", toOrderID).
			Where("id = ?", entryID).
			Where("order_id = ?", fromOrderID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrEntryNotFound
		}
		_, err = tx.NewInsert().Model(correction).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reassign failed")
	}
	return err
}

// RemoveEntry deletes a ledger entry outright and records the correction
// with the REMOVED sentinel, in one transaction. The correction is the only
// audit trail of the original routing decision.
func (r *Repository) RemoveEntry(ctx context.Context, entryID, fromOrderID int64, correction *entity.Correction) error {
	ctx, span := repoTracer.Start(ctx, "MailboxRepository.RemoveEntry", trace.WithAttributes(attribute.Int64("entry.id", entryID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*entity.HistoryEntry)(nil)).
			Where("id = ?", entryID).
			Where("order_id = ?", fromOrderID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrEntryNotFound
		}
		_, err = tx.NewInsert().Model(correction).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove failed")
	}
	return err
}

// CreateMessage stores a raw inbound message record. Exposed for the
// mail-sync collaborator's ingestion path and for seeding.
func (r *Repository) CreateMessage(ctx context.Context, msg *entity.InboundMessage) error {
	ctx, span := repoTracer.Start(ctx, "MailboxRepository.CreateMessage", trace.WithAttributes(attribute.String("message.subject", msg.Subject)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(msg).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}
