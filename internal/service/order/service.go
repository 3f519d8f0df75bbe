package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/seaboundhq/seabound/internal/cache"
	"github.com/seaboundhq/seabound/internal/config"
	"github.com/seaboundhq/seabound/internal/entity"
	"github.com/seaboundhq/seabound/internal/ledger"
	"github.com/seaboundhq/seabound/internal/messaging"
	"github.com/seaboundhq/seabound/internal/ponumber"
	repo "github.com/seaboundhq/seabound/internal/repository/order"
	"github.com/seaboundhq/seabound/internal/stage"
	"github.com/seaboundhq/seabound/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/seaboundhq/seabound/service/order")

// Service owns the order lifecycle: creation, stage transitions, sparse
// edits, amendments, soft delete/restore, and PO number allocation.
type Service struct {
	repo      *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	names     stage.Names
	scheme    ponumber.Scheme
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance. Stage names and the numbering
// scheme come in through configuration; nothing here reaches for globals.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		names: stage.Names(p.Config.Orders.StageNames),
		scheme: ponumber.Scheme{
			Prefix:       p.Config.Orders.NumberPrefix,
			GenericFloor: p.Config.Orders.GenericFloor,
			BuyerCodes:   p.Config.Orders.BuyerCodes,
		},
	}
}

// CreateInput carries the fields for a new order. Number is allocated when
// empty; InitialEntry seeds the stage-1 ledger when supplied.
type CreateInput struct {
	Number       string
	Buyer        string
	Supplier     string
	Product      string
	Specs        string
	Origin       string
	Destination  string
	Brand        string
	Metadata     entity.Metadata
	Items        []*entity.LineItem
	InitialEntry *entity.HistoryEntry
}

// Create persists a new order at stage 1 with its line items and an initial
// ledger entry, allocating a PO number when none was supplied.
func (s *Service) Create(ctx context.Context, orgID int64, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("order.buyer", in.Buyer)))
	defer span.End()

	if in.Buyer == "" || in.Supplier == "" {
		return nil, errorbank.BadRequest("buyer and supplier are required")
	}

	number := in.Number
	if number == "" {
		allocated, err := s.NextNumber(ctx, orgID, in.Buyer)
		if err != nil {
			return nil, err
		}
		number = allocated
	}

	now := time.Now().UTC()
	order := &entity.Order{
		OrgID:       orgID,
		Number:      number,
		Buyer:       in.Buyer,
		Supplier:    in.Supplier,
		Product:     in.Product,
		Specs:       in.Specs,
		Origin:      in.Origin,
		Destination: in.Destination,
		Brand:       in.Brand,
		Stage:       entity.StageMin,
		Metadata:    in.Metadata,
		Items:       in.Items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	order.RecomputeTotals()

	initial := in.InitialEntry
	if initial == nil {
		initial = &entity.HistoryEntry{
			Stage:      entity.StageMin,
			OccurredAt: now,
			Sender:     entity.SystemSender,
			Subject:    fmt.Sprintf("New purchase order %s", number),
			Body:       fmt.Sprintf("%s → %s: %s", in.Buyer, in.Supplier, order.Product),
		}
	}
	if initial.IdempotencyKey == "" {
		initial.IdempotencyKey = uuid.NewString()
	}
	order.History = []*entity.HistoryEntry{initial}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("number", order.Number), zap.Error(err))
	}
	s.publish(ctx, Event{Type: EventCreated, OrgID: orgID, Number: order.Number, Stage: order.Stage, At: now})
	return order, nil
}

// Get retrieves an order with items and history, consulting cache first.
// The ledger comes back in display order (stage asc, timestamp asc).
func (s *Service) Get(ctx context.Context, orgID int64, number string, includeDeleted bool) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if !includeDeleted {
		if order, err := s.getFromCache(ctx, orgID, number); err == nil {
			return order, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("orders cache read failed", zap.String("number", number), zap.Error(err))
		}
	}

	order, err := s.repo.GetByNumber(ctx, orgID, number, includeDeleted)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	ledger.SortForDisplay(order.History)

	if !includeDeleted {
		if err := s.storeInCache(ctx, order); err != nil {
			s.logger.Warn("orders cache write failed", zap.String("number", number), zap.Error(err))
		}
	}
	return order, nil
}

// List returns the organization's orders, excluding soft-deleted ones unless
// asked for.
func (s *Service) List(ctx context.Context, orgID int64, includeDeleted bool) ([]*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List", trace.WithAttributes(attribute.Int64("org.id", orgID)))
	defer span.End()

	orders, err := s.repo.List(ctx, orgID, includeDeleted)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// AdvanceStage moves the order to newStage (forward, backward, or the same
// stage) and appends the transition ledger entry. expectedPrev guards
// against stale clients; nil means the currently stored stage.
func (s *Service) AdvanceStage(ctx context.Context, orgID int64, number string, newStage int, expectedPrev *int) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AdvanceStage", trace.WithAttributes(
		attribute.String("order.number", number),
		attribute.Int("order.stage", newStage),
	))
	defer span.End()

	if err := stage.Validate(newStage); err != nil {
		return nil, errorbank.Unprocessable(err.Error())
	}
	if expectedPrev != nil {
		if err := stage.Validate(*expectedPrev); err != nil {
			return nil, errorbank.Unprocessable(err.Error())
		}
	}

	current, err := s.repo.GetByNumber(ctx, orgID, number, false)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	previous := current.Stage
	if expectedPrev != nil {
		previous = *expectedPrev
	}

	now := time.Now().UTC()
	entry := &entity.HistoryEntry{
		Stage:          newStage,
		OccurredAt:     now,
		Sender:         entity.SystemSender,
		Subject:        stage.TransitionText(s.names, previous, newStage),
		Body:           fmt.Sprintf("Order %s moved: %s", number, stage.TransitionText(s.names, previous, newStage)),
		IdempotencyKey: uuid.NewString(),
	}

	if _, err := s.repo.UpdateStage(ctx, orgID, number, newStage, &previous, entry); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, errorbank.NotFound("order not found")
		case errors.Is(err, repo.ErrStageConflict):
			return nil, errorbank.Conflict("order stage changed concurrently")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update stage", errorbank.WithCause(err))
	}

	s.invalidate(ctx, orgID, number)
	s.publish(ctx, Event{Type: EventStageChanged, OrgID: orgID, Number: number, Stage: newStage, PreviousStage: previous, At: now})
	return s.Get(ctx, orgID, number, false)
}

// Edit applies a sparse field patch; absent fields are left untouched. Line
// items and history are never part of an edit.
func (s *Service) Edit(ctx context.Context, orgID int64, number string, patch repo.Patch) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Edit", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if err := s.repo.ApplyPatch(ctx, orgID, number, patch); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to edit order", errorbank.WithCause(err))
	}

	s.invalidate(ctx, orgID, number)
	return s.Get(ctx, orgID, number, false)
}

// Amend wholesale-replaces the order's line items, recomputes the aggregate
// fields from the new set, and appends exactly one AMENDED ledger entry
// whose attachment metadata embeds the new item snapshot plus document
// context carried forward from the latest stage-1 attachment. Retrying with
// the same idempotency key never produces a second entry.
func (s *Service) Amend(ctx context.Context, orgID int64, number string, items []*entity.LineItem, carried map[string]string, idempotencyKey string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Amend", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if len(items) == 0 {
		return nil, errorbank.Unprocessable("amendment requires at least one line item")
	}
	for i, item := range items {
		if item.Product == "" {
			return nil, errorbank.Unprocessable(fmt.Sprintf("line item %d: product is required", i+1))
		}
		if item.PricePerKg <= 0 {
			return nil, errorbank.Unprocessable(fmt.Sprintf("line item %d: price per kg must be positive", i+1))
		}
		if item.WeightKg <= 0 && item.Cases <= 0 {
			return nil, errorbank.Unprocessable(fmt.Sprintf("line item %d: weight or cases required", i+1))
		}
	}

	order, err := s.Get(ctx, orgID, number, false)
	if err != nil {
		return nil, err
	}

	order.Items = items
	order.RecomputeTotals()

	meta := &entity.AttachmentMeta{Extra: map[string]string{}}
	if prior := ledger.LatestStageMeta(order.History, entity.StageMin); prior != nil {
		meta.DocumentURL = prior.DocumentURL
		for k, v := range prior.Extra {
			meta.Extra[k] = v
		}
	}
	for k, v := range carried {
		meta.Extra[k] = v
	}
	for _, item := range order.Items {
		meta.Items = append(meta.Items, item.Snapshot())
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	now := time.Now().UTC()
	entry := &entity.HistoryEntry{
		Stage:         order.Stage,
		OccurredAt:    now,
		Sender:        entity.SystemSender,
		Subject:       fmt.Sprintf("%s: %s", entity.AmendedMarker, number),
		Body:          fmt.Sprintf("Line items replaced (%d items, %.2f kg, %.2f total)", len(items), order.TotalKilos, order.TotalValue),
		HasAttachment: true,
		Attachments: entity.AttachmentList{{
			Filename: fmt.Sprintf("PO %s (%s)", number, entity.AmendedMarker),
			Meta:     meta,
		}},
		IdempotencyKey: idempotencyKey,
	}
	order.History = append(order.History, entry)

	if err := s.repo.Update(ctx, order); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to amend order", errorbank.WithCause(err))
	}

	s.invalidate(ctx, orgID, number)
	s.publish(ctx, Event{Type: EventAmended, OrgID: orgID, Number: number, Stage: order.Stage, At: now})
	return s.Get(ctx, orgID, number, false)
}

// SoftDelete marks the order deleted so default listings skip it.
func (s *Service) SoftDelete(ctx context.Context, orgID int64, number string) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SoftDelete", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if err := s.repo.SoftDelete(ctx, orgID, number); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}

	s.invalidate(ctx, orgID, number)
	s.publish(ctx, Event{Type: EventDeleted, OrgID: orgID, Number: number, At: time.Now().UTC()})
	return nil
}

// Restore clears the soft-delete marker; the order returns with its ledger
// and line items intact.
func (s *Service) Restore(ctx context.Context, orgID int64, number string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Restore", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if err := s.repo.Restore(ctx, orgID, number); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, errorbank.NotFound("order not found")
		case errors.Is(err, repo.ErrRestoreUnsupported):
			return nil, errorbank.Internal("restore requires the soft-delete schema migration")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to restore order", errorbank.WithCause(err))
	}

	s.publish(ctx, Event{Type: EventRestored, OrgID: orgID, Number: number, At: time.Now().UTC()})
	return s.Get(ctx, orgID, number, false)
}

// NextNumber allocates the next PO number for the organization: buyer-scoped
// (PREFIX/PO/YY-YY/CODE-NNN) when a buyer is named, generic otherwise.
func (s *Service) NextNumber(ctx context.Context, orgID int64, buyer string) (string, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.NextNumber", trace.WithAttributes(attribute.String("order.buyer", buyer)))
	defer span.End()

	now := time.Now().UTC()
	if buyer != "" {
		code := s.scheme.Code(buyer)
		seq, err := s.repo.AllocateSequence(ctx, orgID, code, func(existing []*entity.Order) int64 {
			return s.scheme.SeedBuyer(seedRecords(existing), buyer)
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "allocation error")
			return "", errorbank.Internal("failed to allocate PO number", errorbank.WithCause(err))
		}
		return s.scheme.ForBuyer(now, buyer, seq), nil
	}

	seq, err := s.repo.AllocateSequence(ctx, orgID, "", func(existing []*entity.Order) int64 {
		return s.scheme.SeedGeneric(seedRecords(existing))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation error")
		return "", errorbank.Internal("failed to allocate PO number", errorbank.WithCause(err))
	}
	return s.scheme.Generic(now, seq), nil
}

func seedRecords(orders []*entity.Order) []ponumber.Existing {
	records := make([]ponumber.Existing, 0, len(orders))
	for _, o := range orders {
		records = append(records, ponumber.Existing{Number: o.Number, Buyer: o.Buyer})
	}
	return records
}

// Attachment looks up a ledger attachment by declared filename within a
// stage of the order.
func (s *Service) Attachment(ctx context.Context, orgID int64, number string, stageN int, filename string) (entity.Attachment, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Attachment", trace.WithAttributes(
		attribute.String("order.number", number),
		attribute.Int("order.stage", stageN),
	))
	defer span.End()

	if err := stage.Validate(stageN); err != nil {
		return entity.Attachment{}, errorbank.Unprocessable(err.Error())
	}

	order, err := s.Get(ctx, orgID, number, false)
	if err != nil {
		return entity.Attachment{}, err
	}
	attachment, ok := ledger.FindAttachment(order.History, stageN, filename)
	if !ok {
		return entity.Attachment{}, errorbank.NotFound("attachment not found")
	}
	return attachment, nil
}

func (s *Service) cacheKey(orgID int64, number string) string {
	return fmt.Sprintf("orders:%d:%s", orgID, number)
}

func (s *Service) getFromCache(ctx context.Context, orgID int64, number string) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(orgID, number))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.OrgID, order.Number), bytes, s.cacheTTL)
}

// Invalidate drops the cached copy of an order. Exposed for collaborators
// that append to an order's ledger outside this service.
func (s *Service) Invalidate(ctx context.Context, orgID int64, number string) {
	s.invalidate(ctx, orgID, number)
}

func (s *Service) invalidate(ctx context.Context, orgID int64, number string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(orgID, number)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.String("number", number), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(event.Number), payload); err != nil {
		s.logger.Error("publish order event", zap.String("type", event.Type), zap.Error(err))
	}
}
