// Package maillink binds inbound mailbox records to orders: the initial
// manual match, unlinking back to the unmatched pool, and the two corrective
// ledger operations (reassign, remove) with their audit side channel.
package maillink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/seaboundhq/seabound/internal/entity"
	mailrepo "github.com/seaboundhq/seabound/internal/repository/mailbox"
	ordersvc "github.com/seaboundhq/seabound/internal/service/order"
	"github.com/seaboundhq/seabound/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/seaboundhq/seabound/service/maillink")

// Service implements the email association operations, all scoped by
// organization.
type Service struct {
	mail   *mailrepo.Repository
	orders *ordersvc.Service
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Mailbox *mailrepo.Repository
	Orders  *ordersvc.Service
	Logger  *zap.Logger
}

// NewService wires the association service.
func NewService(p Params) *Service {
	return &Service{
		mail:   p.Mailbox,
		orders: p.Orders,
		logger: p.Logger,
	}
}

// LinkMessage binds an unmatched inbound message to the target order and
// synthesizes a ledger entry from the message's own fields, using its
// detected stage (or stage 1). Both writes happen in one transaction.
func (s *Service) LinkMessage(ctx context.Context, orgID, messageID int64, orderNumber, note string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "MaillinkService.LinkMessage", trace.WithAttributes(
		attribute.Int64("message.id", messageID),
		attribute.String("order.number", orderNumber),
	))
	defer span.End()

	msg, err := s.mail.GetMessage(ctx, orgID, messageID)
	if err != nil {
		if errors.Is(err, mailrepo.ErrMessageNotFound) {
			return nil, errorbank.NotFound("inbound message not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load message", errorbank.WithCause(err))
	}

	order, err := s.orders.Get(ctx, orgID, orderNumber, false)
	if err != nil {
		return nil, err
	}

	entry := &entity.HistoryEntry{
		Stage:          msg.LedgerStage(),
		OccurredAt:     msg.ReceivedAt,
		Sender:         senderLine(msg),
		Recipient:      msg.Recipient,
		Subject:        msg.Subject,
		Body:           msg.Body,
		HasAttachment:  msg.HasAttachment,
		IdempotencyKey: fmt.Sprintf("link:%s", msg.MessageID),
	}

	if err := s.mail.Link(ctx, msg, order.ID, entry, note); err != nil {
		if errors.Is(err, mailrepo.ErrMessageNotFound) {
			return nil, errorbank.NotFound("inbound message not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to link message", errorbank.WithCause(err))
	}

	s.orders.Invalidate(ctx, orgID, orderNumber)
	return s.orders.Get(ctx, orgID, orderNumber, false)
}

// UnlinkMessage clears the automatic and manual association fields, returning
// the message to the unmatched pool. Ledger entries already created by a
// previous link stay where they are.
func (s *Service) UnlinkMessage(ctx context.Context, orgID, messageID int64) error {
	ctx, span := serviceTracer.Start(ctx, "MaillinkService.UnlinkMessage", trace.WithAttributes(attribute.Int64("message.id", messageID)))
	defer span.End()

	if err := s.mail.Unlink(ctx, orgID, messageID); err != nil {
		if errors.Is(err, mailrepo.ErrMessageNotFound) {
			return errorbank.NotFound("inbound message not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to unlink message", errorbank.WithCause(err))
	}
	return nil
}

// ReassignEntry moves one ledger entry from one order to another and records
// the correction keyed by the entry's subject and sender. The default note
// documents the move.
func (s *Service) ReassignEntry(ctx context.Context, orgID, entryID int64, fromNumber, toNumber, note string) error {
	ctx, span := serviceTracer.Start(ctx, "MaillinkService.ReassignEntry", trace.WithAttributes(
		attribute.Int64("entry.id", entryID),
		attribute.String("order.from", fromNumber),
		attribute.String("order.to", toNumber),
	))
	defer span.End()

	from, err := s.orders.Get(ctx, orgID, fromNumber, true)
	if err != nil {
		return err
	}
	to, err := s.orders.Get(ctx, orgID, toNumber, false)
	if err != nil {
		return err
	}

	entry, err := s.mail.GetEntry(ctx, entryID, from.ID)
	if err != nil {
		if errors.Is(err, mailrepo.ErrEntryNotFound) {
			return errorbank.NotFound("history entry not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to load entry", errorbank.WithCause(err))
	}

	if note == "" {
		note = fmt.Sprintf("Moved from %s to %s", fromNumber, toNumber)
	}
	correction := &entity.Correction{
		OrgID:     orgID,
		Subject:   entry.Subject,
		Sender:    entry.Sender,
		Target:    toNumber,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.mail.ReassignEntry(ctx, entryID, from.ID, to.ID, correction); err != nil {
		if errors.Is(err, mailrepo.ErrEntryNotFound) {
			return errorbank.NotFound("history entry not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to reassign entry", errorbank.WithCause(err))
	}

	s.orders.Invalidate(ctx, orgID, fromNumber)
	s.orders.Invalidate(ctx, orgID, toNumber)
	s.logger.Info("history entry reassigned",
		zap.Int64("entry", entryID),
		zap.String("from", fromNumber),
		zap.String("to", toNumber),
	)
	return nil
}

// RemoveEntry deletes one ledger entry outright, leaving the correction
// record with the REMOVED sentinel as the only audit trail.
func (s *Service) RemoveEntry(ctx context.Context, orgID, entryID int64, fromNumber, note string) error {
	ctx, span := serviceTracer.Start(ctx, "MaillinkService.RemoveEntry", trace.WithAttributes(attribute.Int64("entry.id", entryID)))
	defer span.End()

	from, err := s.orders.Get(ctx, orgID, fromNumber, true)
	if err != nil {
		return err
	}

	entry, err := s.mail.GetEntry(ctx, entryID, from.ID)
	if err != nil {
		if errors.Is(err, mailrepo.ErrEntryNotFound) {
			return errorbank.NotFound("history entry not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to load entry", errorbank.WithCause(err))
	}

	correction := &entity.Correction{
		OrgID:     orgID,
		Subject:   entry.Subject,
		Sender:    entry.Sender,
		Target:    entity.CorrectionRemoved,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.mail.RemoveEntry(ctx, entryID, from.ID, correction); err != nil {
		if errors.Is(err, mailrepo.ErrEntryNotFound) {
			return errorbank.NotFound("history entry not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to remove entry", errorbank.WithCause(err))
	}

	s.orders.Invalidate(ctx, orgID, fromNumber)
	s.logger.Info("history entry removed", zap.Int64("entry", entryID), zap.String("from", fromNumber))
	return nil
}

// ListUnmatched returns messages awaiting a manual match.
func (s *Service) ListUnmatched(ctx context.Context, orgID int64) ([]*entity.InboundMessage, error) {
	ctx, span := serviceTracer.Start(ctx, "MaillinkService.ListUnmatched", trace.WithAttributes(attribute.Int64("org.id", orgID)))
	defer span.End()

	msgs, err := s.mail.ListUnmatched(ctx, orgID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list messages", errorbank.WithCause(err))
	}
	return msgs, nil
}

func senderLine(msg *entity.InboundMessage) string {
	if msg.SenderName != "" {
		return fmt.Sprintf("%s <%s>", msg.SenderName, msg.SenderAddress)
	}
	return msg.SenderAddress
}
